package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actor types
const (
	ActorOwner     = "owner"
	ActorPublisher = "publisher"
	ActorCollector = "collector"
	ActorSystem    = "system"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id"`
	ActorID    *string    `json:"actor_id,omitempty"`
	ActorType  string     `json:"actor_type"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"` // campaign/post
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Meta       any        `json:"meta,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
