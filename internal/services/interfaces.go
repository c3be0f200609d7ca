package services

import (
	"context"
	"time"

	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/google/uuid"
)

// CampaignStore is the persistence the campaign service needs.
// *repositories.CampaignRepo implements it.
type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddPost(ctx context.Context, id, postID uuid.UUID) (*models.Campaign, error)
	RemovePost(ctx context.Context, id, postID uuid.UUID) (*models.Campaign, error)
	SetPosts(ctx context.Context, id uuid.UUID, version int64, postIDs []uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error)
	ListActive(ctx context.Context, truckID string, now time.Time) ([]models.Campaign, error)
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error)
}

// PostStore is implemented by *repositories.PostRepo.
type PostStore interface {
	Create(ctx context.Context, p *models.SocialPost) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SocialPost, error)
	Update(ctx context.Context, p *models.SocialPost) error
	List(ctx context.Context, f repositories.PostFilter) ([]models.SocialPost, error)
	ListScheduled(ctx context.Context, truckID string, start, end time.Time) ([]models.SocialPost, error)
	ListTemplates(ctx context.Context, truckID string, category *string) ([]models.SocialPost, error)
	ListIDsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

var (
	_ CampaignStore = (*repositories.CampaignRepo)(nil)
	_ PostStore     = (*repositories.PostRepo)(nil)
	_ AuditLogger   = (*repositories.AuditRepo)(nil)
)
