package services

import (
	"context"

	"github.com/food-truck-finder/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actor is the caller of a service operation. Owners only see and change
// their own records; service callers and the system are not scoped.
type Actor struct {
	ID   string
	Type string
}

var SystemActor = Actor{Type: models.ActorSystem}

func OwnerActor(ownerID string) Actor {
	return Actor{ID: ownerID, Type: models.ActorOwner}
}

func (a Actor) owns(ownerID string) bool {
	return a.Type != models.ActorOwner || a.ID == ownerID
}

func (a Actor) auditID() *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

// writeAudit records a mutation. Audit failures are logged, not returned:
// the mutation itself has already been persisted.
func writeAudit(ctx context.Context, audit AuditLogger, log *zap.Logger, actor Actor, action, entityType string, entityID uuid.UUID, meta map[string]any) {
	entry := models.AuditLog{
		ActorID:    actor.auditID(),
		ActorType:  actor.Type,
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
	}
	if meta != nil {
		entry.Meta = meta
	}
	if err := audit.Log(ctx, entry); err != nil {
		log.Warn("audit log failed",
			zap.String("action", action),
			zap.String("entity_id", entityID.String()),
			zap.Error(err),
		)
	}
}
