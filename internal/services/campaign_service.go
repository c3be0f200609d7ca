package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/food-truck-finder/backend/internal/config"
	"github.com/food-truck-finder/backend/internal/events"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/observability"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCurrency = "USD"

type CreateCampaignInput struct {
	TruckID     string                    `json:"truck_id" validate:"required,max=100"`
	Name        string                    `json:"name" validate:"required,max=200"`
	Description string                    `json:"description" validate:"max=2000"`
	Type        string                    `json:"type" validate:"required,oneof=promotion contest event seasonal product-launch awareness"`
	Status      string                    `json:"status" validate:"omitempty,oneof=draft active paused completed cancelled"`
	StartDate   time.Time                 `json:"start_date" validate:"required"`
	EndDate     time.Time                 `json:"end_date" validate:"required,gtefield=StartDate"`
	Goals       models.CampaignGoals      `json:"goals"`
	Budget      models.CampaignBudget     `json:"budget"`
	Platforms   []string                  `json:"platforms" validate:"unique,dive,oneof=instagram facebook twitter linkedin tiktok"`
	Promotion   *models.CampaignPromotion `json:"promotion"`
	Contest     *models.CampaignContest   `json:"contest"`
}

// UpdateCampaignInput is a partial update; nil fields are left alone.
type UpdateCampaignInput struct {
	Name        *string                   `json:"name"`
	Description *string                   `json:"description"`
	Type        *string                   `json:"type"`
	Status      *string                   `json:"status"`
	StartDate   *time.Time                `json:"start_date"`
	EndDate     *time.Time                `json:"end_date"`
	Goals       *models.CampaignGoals     `json:"goals"`
	Budget      *models.CampaignBudget    `json:"budget"`
	Platforms   []string                  `json:"platforms"`
	Promotion   *models.CampaignPromotion `json:"promotion"`
	Contest     *models.CampaignContest   `json:"contest"`
}

type CampaignService struct {
	campaigns CampaignStore
	posts     PostStore
	audit     AuditLogger
	publisher events.Publisher
	retries   int
	batchSize int
	log       *zap.Logger
	now       func() time.Time
}

func NewCampaignService(
	campaigns CampaignStore,
	posts PostStore,
	audit AuditLogger,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		posts:     posts,
		audit:     audit,
		publisher: publisher,
		retries:   cfg.ConflictRetries,
		batchSize: min(max(cfg.SweepBatchSize, 1), 100),
		log:       log,
		now:       time.Now,
	}
}

// Now is the service clock. Derived fields on read use it.
func (s *CampaignService) Now() time.Time { return s.now() }

func (s *CampaignService) Create(ctx context.Context, actor Actor, in CreateCampaignInput) (*models.Campaign, error) {
	if actor.ID == "" {
		return nil, models.NewValidationError("owner_id", "is required")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	c := &models.Campaign{
		TruckID:     in.TruckID,
		OwnerID:     actor.ID,
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Status:      in.Status,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Goals:       in.Goals,
		Budget:      in.Budget,
		Platforms:   in.Platforms,
		Promotion:   in.Promotion,
		Contest:     in.Contest,
		PostIDs:     []uuid.UUID{},
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	if c.Budget.Currency == "" {
		c.Budget.Currency = defaultCurrency
	}
	if c.Platforms == nil {
		c.Platforms = []string{}
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}

	writeAudit(ctx, s.audit, s.log, actor, "campaign_created", "campaign", c.ID, map[string]any{
		"truck_id": c.TruckID,
		"status":   c.Status,
	})
	return c, nil
}

// Get returns the campaign if the actor may see it. Owners get NotFound for
// campaigns that are not theirs.
func (s *CampaignService) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(c.OwnerID) {
		return nil, models.NewNotFoundError("campaign", id)
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, actor Actor, f repositories.CampaignFilter) ([]models.Campaign, error) {
	if actor.Type == models.ActorOwner {
		f.OwnerID = &actor.ID
	}
	return s.campaigns.List(ctx, f)
}

func (s *CampaignService) Update(ctx context.Context, id uuid.UUID, actor Actor, in UpdateCampaignInput) (*models.Campaign, error) {
	var (
		out       *models.Campaign
		oldStatus string
	)
	err := retryOnConflict(ctx, s.retries, "campaign", func() error {
		c, err := s.Get(ctx, id, actor)
		if err != nil {
			return err
		}
		oldStatus = c.Status
		if err := applyCampaignUpdate(c, in); err != nil {
			return err
		}
		if err := validateStruct(campaignInputFrom(c)); err != nil {
			return err
		}
		if err := s.campaigns.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	writeAudit(ctx, s.audit, s.log, actor, "campaign_updated", "campaign", id, nil)
	if out.Status != oldStatus {
		s.publishStatusChange(ctx, out, oldStatus)
	}
	return out, nil
}

func applyCampaignUpdate(c *models.Campaign, in UpdateCampaignInput) error {
	if in.Status != nil && *in.Status != c.Status {
		if !models.IsValidCampaignTransition(c.Status, *in.Status) {
			return invalidCampaignTransition(c.Status, *in.Status)
		}
		c.Status = *in.Status
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.StartDate != nil {
		c.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		c.EndDate = *in.EndDate
	}
	if in.Goals != nil {
		c.Goals = *in.Goals
	}
	if in.Budget != nil {
		c.Budget = *in.Budget
		if c.Budget.Currency == "" {
			c.Budget.Currency = defaultCurrency
		}
	}
	if in.Platforms != nil {
		c.Platforms = in.Platforms
	}
	if in.Promotion != nil {
		c.Promotion = in.Promotion
	}
	if in.Contest != nil {
		c.Contest = in.Contest
	}
	return nil
}

// campaignInputFrom lets merged state be re-validated with the create rules.
func campaignInputFrom(c *models.Campaign) CreateCampaignInput {
	return CreateCampaignInput{
		TruckID:     c.TruckID,
		Name:        c.Name,
		Description: c.Description,
		Type:        c.Type,
		Status:      c.Status,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Goals:       c.Goals,
		Budget:      c.Budget,
		Platforms:   c.Platforms,
		Promotion:   c.Promotion,
		Contest:     c.Contest,
	}
}

func invalidCampaignTransition(from, to string) error {
	return models.NewValidationError("status", fmt.Sprintf("cannot change campaign status from %s to %s", from, to))
}

// ChangeStatus moves the campaign along the status graph. Requesting the
// current status is a no-op.
func (s *CampaignService) ChangeStatus(ctx context.Context, id uuid.UUID, actor Actor, to string) (*models.Campaign, error) {
	return s.changeStatus(ctx, id, actor, "", to)
}

// changeStatus applies the transition only while the stored status equals
// expect, when expect is set.
func (s *CampaignService) changeStatus(ctx context.Context, id uuid.UUID, actor Actor, expect, to string) (*models.Campaign, error) {
	if _, ok := models.ValidCampaignTransitions[to]; !ok {
		return nil, models.NewValidationError("status", "unknown campaign status "+to)
	}

	var (
		out  *models.Campaign
		from string
	)
	err := retryOnConflict(ctx, s.retries, "campaign", func() error {
		c, err := s.Get(ctx, id, actor)
		if err != nil {
			return err
		}
		from = c.Status
		out = c
		if expect != "" && c.Status != expect {
			return models.NewValidationError("status", fmt.Sprintf("campaign is %s, not %s", c.Status, expect))
		}
		if c.Status == to {
			return nil
		}
		if !models.IsValidCampaignTransition(c.Status, to) {
			return invalidCampaignTransition(c.Status, to)
		}
		c.Status = to
		return s.campaigns.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	if from == to {
		return out, nil
	}

	writeAudit(ctx, s.audit, s.log, actor, "campaign_status_changed", "campaign", id, map[string]any{
		"from": from,
		"to":   to,
	})
	s.publishStatusChange(ctx, out, from)
	return out, nil
}

func (s *CampaignService) publishStatusChange(ctx context.Context, c *models.Campaign, from string) {
	err := s.publisher.Publish(ctx, events.ChannelCampaign, events.Event{
		Type: events.EventCampaignStatusChanged,
		Payload: map[string]any{
			"campaign_id": c.ID.String(),
			"truck_id":    c.TruckID,
			"from":        from,
			"to":          c.Status,
		},
	})
	if err != nil {
		observability.EventPublishFailures.WithLabelValues(events.EventCampaignStatusChanged).Inc()
		s.log.Warn("publish campaign status event failed", zap.String("campaign_id", c.ID.String()), zap.Error(err))
	}
}

// Delete removes the campaign. Posts pointing at it keep their
// campaign_id; the back-reference is weak.
func (s *CampaignService) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	c, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	writeAudit(ctx, s.audit, s.log, actor, "campaign_deleted", "campaign", id, map[string]any{
		"truck_id":   c.TruckID,
		"post_count": len(c.PostIDs),
	})
	return nil
}

// UpdateAnalytics shallow-merges reported metrics into the campaign. ROI is
// recomputed only when revenue is reported and budget has been spent.
func (s *CampaignService) UpdateAnalytics(ctx context.Context, id uuid.UUID, patch models.CampaignAnalyticsPatch) (*models.Campaign, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}

	var out *models.Campaign
	err := retryOnConflict(ctx, s.retries, "campaign", func() error {
		c, err := s.campaigns.GetByID(ctx, id)
		if err != nil {
			return err
		}
		c.ApplyAnalytics(patch, s.now())
		if err := s.campaigns.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddPost links postID to the campaign. Adding a post that is already
// linked changes nothing.
func (s *CampaignService) AddPost(ctx context.Context, id, postID uuid.UUID) (*models.Campaign, error) {
	if postID == uuid.Nil {
		return nil, models.NewValidationError("post_id", "is required")
	}
	return s.campaigns.AddPost(ctx, id, postID)
}

func (s *CampaignService) RemovePost(ctx context.Context, id, postID uuid.UUID) (*models.Campaign, error) {
	if postID == uuid.Nil {
		return nil, models.NewValidationError("post_id", "is required")
	}
	return s.campaigns.RemovePost(ctx, id, postID)
}

// GetActiveCampaigns returns the truck's campaigns that are active with
// now inside their window, earliest start first.
func (s *CampaignService) GetActiveCampaigns(ctx context.Context, truckID string, now time.Time) ([]models.Campaign, error) {
	if truckID == "" {
		return nil, models.NewValidationError("truck_id", "is required")
	}
	return s.campaigns.ListActive(ctx, truckID, now)
}

// ReconcilePosts rebuilds the campaign's post set from the posts that point
// at it. It repairs drift left by failed best-effort link updates. The write
// is version-checked so a post linked while the set was being rebuilt is
// picked up on the retry instead of being dropped.
func (s *CampaignService) ReconcilePosts(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var (
		out    *models.Campaign
		before int
		after  int
		wrote  bool
	)
	err := retryOnConflict(ctx, s.retries, "campaign", func() error {
		c, err := s.campaigns.GetByID(ctx, id)
		if err != nil {
			return err
		}
		ids, err := s.posts.ListIDsByCampaign(ctx, id)
		if err != nil {
			return err
		}
		if slices.Equal(ids, c.PostIDs) && c.Analytics.TotalPosts == len(ids) {
			out, wrote = c, false
			return nil
		}
		updated, err := s.campaigns.SetPosts(ctx, id, c.Version, ids)
		if err != nil {
			return err
		}
		out, wrote = updated, true
		before, after = len(c.PostIDs), len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !wrote {
		return out, nil
	}

	s.log.Info("campaign posts reconciled",
		zap.String("campaign_id", id.String()),
		zap.Int("before", before),
		zap.Int("after", after),
	)
	writeAudit(ctx, s.audit, s.log, SystemActor, "campaign_posts_reconciled", "campaign", id, map[string]any{
		"before": before,
		"after":  after,
	})
	return out, nil
}

// ReconcileAll runs ReconcilePosts over every campaign. It returns how many
// campaigns were visited; per-campaign failures are joined into the error.
func (s *CampaignService) ReconcileAll(ctx context.Context) (int, error) {
	var (
		visited int
		errs    []error
	)
	for offset := 0; ; offset += s.batchSize {
		page, err := s.campaigns.List(ctx, repositories.CampaignFilter{Limit: s.batchSize, Offset: offset})
		if err != nil {
			return visited, err
		}
		for _, c := range page {
			if ctx.Err() != nil {
				return visited, ctx.Err()
			}
			if _, err := s.ReconcilePosts(ctx, c.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
				errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			}
			visited++
		}
		if len(page) < s.batchSize {
			break
		}
	}
	return visited, errors.Join(errs...)
}

// CompleteExpired moves active campaigns whose end date passed before now
// to completed, one batch per call. Campaigns that changed concurrently are
// skipped.
func (s *CampaignService) CompleteExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.campaigns.ListExpiredActive(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	var (
		completed int
		errs      []error
	)
	for _, c := range expired {
		_, err := s.changeStatus(ctx, c.ID, SystemActor, models.CampaignStatusActive, models.CampaignStatusCompleted)
		switch {
		case err == nil:
			completed++
			observability.CampaignsCompleted.Inc()
		case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNotFound):
			s.log.Debug("skip expired campaign", zap.String("campaign_id", c.ID.String()), zap.Error(err))
		default:
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
		}
	}
	return completed, errors.Join(errs...)
}

// History returns the audit trail of a campaign, newest first.
func (s *CampaignService) History(ctx context.Context, id uuid.UUID, actor Actor, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.audit.GetByEntity(ctx, "campaign", id, limit, offset)
}
