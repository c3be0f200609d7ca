package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/food-truck-finder/backend/internal/config"
	"github.com/food-truck-finder/backend/internal/events"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/observability"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlatformTarget names one platform a post should go out on.
type PlatformTarget struct {
	Name string `json:"name" validate:"required,oneof=instagram facebook twitter linkedin tiktok"`
}

type CreatePostInput struct {
	TruckID          string             `json:"truck_id" validate:"required,max=100"`
	CampaignID       *uuid.UUID         `json:"campaign_id"`
	Text             string             `json:"text" validate:"max=2200"`
	Hashtags         []string           `json:"hashtags" validate:"max=30,dive,max=100"`
	Mentions         []string           `json:"mentions" validate:"max=50,dive,max=100"`
	Images           []models.PostImage `json:"images" validate:"max=10,dive"`
	Link             *string            `json:"link" validate:"omitempty,url"`
	Status           string             `json:"status" validate:"omitempty,oneof=draft scheduled"`
	ScheduledTime    *time.Time         `json:"scheduled_time"`
	Platforms        []PlatformTarget   `json:"platforms" validate:"unique=Name,dive"`
	IsTemplate       bool               `json:"is_template"`
	TemplateName     *string            `json:"template_name" validate:"omitempty,max=200"`
	TemplateCategory *string            `json:"template_category" validate:"omitempty,max=100"`
	AIGenerated      bool               `json:"ai_generated"`
	AIPrompt         *string            `json:"ai_prompt" validate:"omitempty,max=4000"`
}

// UpdatePostInput edits content. Nil fields are left alone.
type UpdatePostInput struct {
	Text             *string             `json:"text" validate:"omitempty,max=2200"`
	Hashtags         []string            `json:"hashtags" validate:"omitempty,max=30,dive,max=100"`
	Mentions         []string            `json:"mentions" validate:"omitempty,max=50,dive,max=100"`
	Images           *[]models.PostImage `json:"images" validate:"omitempty,max=10,dive"`
	Link             *string             `json:"link" validate:"omitempty,url"`
	Platforms        []PlatformTarget    `json:"platforms" validate:"omitempty,unique=Name,dive"`
	TemplateName     *string             `json:"template_name" validate:"omitempty,max=200"`
	TemplateCategory *string             `json:"template_category" validate:"omitempty,max=100"`
}

// FromTemplateInput carries what differs from the template in the new post.
type FromTemplateInput struct {
	TruckID    string     `json:"truck_id" validate:"omitempty,max=100"`
	CampaignID *uuid.UUID `json:"campaign_id"`
	Text       *string    `json:"text" validate:"omitempty,max=2200"`
}

type PostService struct {
	posts     PostStore
	campaigns *CampaignService
	audit     AuditLogger
	publisher events.Publisher
	retries   int
	log       *zap.Logger
	now       func() time.Time
}

func NewPostService(
	posts PostStore,
	campaigns *CampaignService,
	audit AuditLogger,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *PostService {
	return &PostService{
		posts:     posts,
		campaigns: campaigns,
		audit:     audit,
		publisher: publisher,
		retries:   cfg.ConflictRetries,
		log:       log,
		now:       time.Now,
	}
}

func (s *PostService) Create(ctx context.Context, actor Actor, in CreatePostInput) (*models.SocialPost, error) {
	if actor.ID == "" {
		return nil, models.NewValidationError("owner_id", "is required")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.IsTemplate && in.Status != "" && in.Status != models.PostStatusDraft {
		return nil, models.NewValidationError("status", "templates stay in draft")
	}
	if in.Status == models.PostStatusScheduled && len(in.Platforms) == 0 {
		return nil, models.NewValidationError("platforms", "at least one platform is required to schedule")
	}

	p := &models.SocialPost{
		TruckID:          in.TruckID,
		OwnerID:          actor.ID,
		Text:             in.Text,
		Hashtags:         normalizeTags(in.Hashtags, "#"),
		Mentions:         normalizeTags(in.Mentions, "@"),
		Images:           in.Images,
		Link:             in.Link,
		Status:           in.Status,
		ScheduledTime:    in.ScheduledTime,
		Platforms:        models.NewPlatforms(targetNames(in.Platforms)),
		IsTemplate:       in.IsTemplate,
		TemplateName:     in.TemplateName,
		TemplateCategory: in.TemplateCategory,
		AIGenerated:      in.AIGenerated,
		AIPrompt:         in.AIPrompt,
	}
	if p.Status == "" {
		p.Status = models.PostStatusDraft
	}
	if p.Images == nil {
		p.Images = []models.PostImage{}
	}

	var campaign *models.Campaign
	if in.CampaignID != nil {
		c, err := s.campaigns.Get(ctx, *in.CampaignID, actor)
		if err != nil {
			return nil, err
		}
		campaign = c
		p.CampaignID = &c.ID
		name := c.Name
		p.CampaignName = &name
	}

	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}

	if campaign != nil {
		s.linkToCampaign(ctx, campaign.ID, p.ID)
	}
	writeAudit(ctx, s.audit, s.log, actor, "post_created", "post", p.ID, map[string]any{
		"truck_id":    p.TruckID,
		"status":      p.Status,
		"is_template": p.IsTemplate,
	})
	if p.Status == models.PostStatusScheduled {
		s.publishPostEvent(ctx, events.EventPostScheduled, p, nil)
	}
	return p, nil
}

// linkToCampaign is the best-effort half of the post/campaign link. A
// failure is logged and left for ReconcilePosts.
func (s *PostService) linkToCampaign(ctx context.Context, campaignID, postID uuid.UUID) {
	if _, err := s.campaigns.AddPost(ctx, campaignID, postID); err != nil {
		observability.LinkFailures.WithLabelValues("add").Inc()
		s.log.Warn("link post to campaign failed",
			zap.String("campaign_id", campaignID.String()),
			zap.String("post_id", postID.String()),
			zap.Error(err),
		)
	}
}

func (s *PostService) unlinkFromCampaign(ctx context.Context, campaignID, postID uuid.UUID) {
	if _, err := s.campaigns.RemovePost(ctx, campaignID, postID); err != nil && !errors.Is(err, models.ErrNotFound) {
		observability.LinkFailures.WithLabelValues("remove").Inc()
		s.log.Warn("unlink post from campaign failed",
			zap.String("campaign_id", campaignID.String()),
			zap.String("post_id", postID.String()),
			zap.Error(err),
		)
	}
}

func (s *PostService) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.SocialPost, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(p.OwnerID) {
		return nil, models.NewNotFoundError("post", id)
	}
	return p, nil
}

func (s *PostService) List(ctx context.Context, actor Actor, f repositories.PostFilter) ([]models.SocialPost, error) {
	if actor.Type == models.ActorOwner {
		f.OwnerID = &actor.ID
	}
	return s.posts.List(ctx, f)
}

// mutate runs a version-checked read-modify-write of one post. fn reports
// whether it changed anything; unchanged posts are not written.
func (s *PostService) mutate(ctx context.Context, id uuid.UUID, actor Actor, fn func(p *models.SocialPost) (bool, error)) (*models.SocialPost, bool, error) {
	var (
		out     *models.SocialPost
		changed bool
	)
	err := retryOnConflict(ctx, s.retries, "post", func() error {
		p, err := s.Get(ctx, id, actor)
		if err != nil {
			return err
		}
		changed, err = fn(p)
		if err != nil {
			return err
		}
		out = p
		if !changed {
			return nil
		}
		return s.posts.Update(ctx, p)
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func (s *PostService) Update(ctx context.Context, id uuid.UUID, actor Actor, in UpdatePostInput) (*models.SocialPost, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	p, changed, err := s.mutate(ctx, id, actor, func(p *models.SocialPost) (bool, error) {
		if p.Status == models.PostStatusPublished || p.Status == models.PostStatusDeleted {
			return false, models.NewValidationError("status", "cannot edit a "+p.Status+" post")
		}
		if in.Platforms != nil {
			if p.AnyPlatformPublished() {
				return false, models.NewValidationError("platforms", "cannot change platforms once a platform has published")
			}
			if len(in.Platforms) == 0 && p.Status != models.PostStatusDraft {
				return false, models.NewValidationError("platforms", "a "+p.Status+" post needs at least one platform")
			}
		}
		applyPostUpdate(p, in)
		if p.Status == models.PostStatusScheduled {
			p.SettlePublished(s.now())
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		writeAudit(ctx, s.audit, s.log, actor, "post_updated", "post", id, nil)
		if p.Status == models.PostStatusPublished {
			s.publishPostEvent(ctx, events.EventPostPublished, p, nil)
		}
	}
	return p, nil
}

func applyPostUpdate(p *models.SocialPost, in UpdatePostInput) {
	if in.Text != nil {
		p.Text = *in.Text
	}
	if in.Hashtags != nil {
		p.Hashtags = normalizeTags(in.Hashtags, "#")
	}
	if in.Mentions != nil {
		p.Mentions = normalizeTags(in.Mentions, "@")
	}
	if in.Images != nil {
		p.Images = *in.Images
	}
	if in.Link != nil {
		if *in.Link == "" {
			p.Link = nil
		} else {
			p.Link = in.Link
		}
	}
	if in.Platforms != nil {
		// Keep bookkeeping for platforms that stay targeted.
		next := make([]models.PostPlatform, 0, len(in.Platforms))
		for _, t := range in.Platforms {
			entry := models.PostPlatform{Name: t.Name, Status: models.PlatformStatusPending}
			for _, old := range p.Platforms {
				if old.Name == t.Name {
					entry = old
					break
				}
			}
			next = append(next, entry)
		}
		p.Platforms = next
	}
	if in.TemplateName != nil {
		p.TemplateName = in.TemplateName
	}
	if in.TemplateCategory != nil {
		p.TemplateCategory = in.TemplateCategory
	}
}

func (s *PostService) transition(p *models.SocialPost, to string) error {
	if !models.IsValidPostTransition(p.Status, to) {
		return models.NewValidationError("status", fmt.Sprintf("cannot change post status from %s to %s", p.Status, to))
	}
	p.Status = to
	return nil
}

// Schedule queues the post for the external publisher at the given time.
// Rescheduling a scheduled post only moves its time.
func (s *PostService) Schedule(ctx context.Context, id uuid.UUID, actor Actor, at time.Time) (*models.SocialPost, error) {
	if at.IsZero() {
		return nil, models.NewValidationError("scheduled_time", "is required")
	}
	p, changed, err := s.mutate(ctx, id, actor, func(p *models.SocialPost) (bool, error) {
		if p.IsTemplate {
			return false, models.NewValidationError("is_template", "templates cannot be scheduled")
		}
		if len(p.Platforms) == 0 {
			return false, models.NewValidationError("platforms", "at least one platform is required to schedule")
		}
		if p.Status != models.PostStatusScheduled {
			if err := s.transition(p, models.PostStatusScheduled); err != nil {
				return false, err
			}
		} else if p.ScheduledTime != nil && p.ScheduledTime.Equal(at) {
			return false, nil
		}
		t := at
		p.ScheduledTime = &t
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		writeAudit(ctx, s.audit, s.log, actor, "post_scheduled", "post", id, map[string]any{"scheduled_time": at})
		s.publishPostEvent(ctx, events.EventPostScheduled, p, nil)
	}
	return p, nil
}

// Unschedule returns a scheduled post to draft.
func (s *PostService) Unschedule(ctx context.Context, id uuid.UUID, actor Actor) (*models.SocialPost, error) {
	p, changed, err := s.mutate(ctx, id, actor, func(p *models.SocialPost) (bool, error) {
		if p.Status == models.PostStatusDraft {
			return false, nil
		}
		if p.Status != models.PostStatusScheduled {
			return false, models.NewValidationError("status", "only scheduled posts can be unscheduled")
		}
		if err := s.transition(p, models.PostStatusDraft); err != nil {
			return false, err
		}
		p.ScheduledTime = nil
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		writeAudit(ctx, s.audit, s.log, actor, "post_unscheduled", "post", id, nil)
	}
	return p, nil
}

// Delete soft-deletes the post and drops it from its campaign. Deleting a
// deleted post is a no-op.
func (s *PostService) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	p, changed, err := s.mutate(ctx, id, actor, func(p *models.SocialPost) (bool, error) {
		if p.Status == models.PostStatusDeleted {
			return false, nil
		}
		return true, s.transition(p, models.PostStatusDeleted)
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if p.CampaignID != nil {
		s.unlinkFromCampaign(ctx, *p.CampaignID, p.ID)
	}
	writeAudit(ctx, s.audit, s.log, actor, "post_deleted", "post", id, nil)
	return nil
}

// UpdateAnalytics shallow-merges reported metrics into the post.
func (s *PostService) UpdateAnalytics(ctx context.Context, id uuid.UUID, patch models.PostAnalyticsPatch) (*models.SocialPost, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	p, _, err := s.mutate(ctx, id, SystemActor, func(p *models.SocialPost) (bool, error) {
		p.ApplyAnalytics(patch, s.now())
		return true, nil
	})
	return p, err
}

// MarkPlatformPublished records the publisher's success report for one
// platform. The post becomes published once every targeted platform has.
func (s *PostService) MarkPlatformPublished(ctx context.Context, id uuid.UUID, platform, externalID, url string) (*models.SocialPost, error) {
	if platform == "" {
		return nil, models.NewValidationError("platform", "is required")
	}
	var wasPublished bool
	p, changed, err := s.mutate(ctx, id, SystemActor, func(p *models.SocialPost) (bool, error) {
		if p.IsTemplate {
			return false, models.NewValidationError("is_template", "templates are never published")
		}
		wasPublished = p.Status == models.PostStatusPublished
		changed, err := p.MarkPlatformPublished(platform, externalID, url, s.now())
		if errors.Is(err, models.ErrPlatformNotTargeted) {
			return false, models.NewNotFoundError("platform", platform)
		}
		return changed, err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return p, nil
	}

	observability.PlatformPublishResults.WithLabelValues(platform, models.PlatformStatusPublished).Inc()
	if !wasPublished && p.Status == models.PostStatusPublished {
		writeAudit(ctx, s.audit, s.log, Actor{Type: models.ActorPublisher}, "post_published", "post", id, nil)
		s.publishPostEvent(ctx, events.EventPostPublished, p, nil)
	}
	return p, nil
}

// MarkPlatformFailed records a platform error. The post's overall status
// is left unchanged; nothing derives an overall failure from entry errors.
func (s *PostService) MarkPlatformFailed(ctx context.Context, id uuid.UUID, platform, message string) (*models.SocialPost, error) {
	if platform == "" {
		return nil, models.NewValidationError("platform", "is required")
	}
	if message == "" {
		return nil, models.NewValidationError("error", "is required")
	}
	p, changed, err := s.mutate(ctx, id, SystemActor, func(p *models.SocialPost) (bool, error) {
		if p.IsTemplate {
			return false, models.NewValidationError("is_template", "templates are never published")
		}
		changed, err := p.MarkPlatformFailed(platform, message)
		if errors.Is(err, models.ErrPlatformNotTargeted) {
			return false, models.NewNotFoundError("platform", platform)
		}
		return changed, err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		observability.PlatformPublishResults.WithLabelValues(platform, models.PlatformStatusFailed).Inc()
		s.publishPostEvent(ctx, events.EventPlatformPublishFailed, p, map[string]any{
			"platform": platform,
			"error":    message,
		})
	}
	return p, nil
}

// GetScheduledPosts returns the truck's scheduled posts due within
// [start, end], earliest first.
func (s *PostService) GetScheduledPosts(ctx context.Context, truckID string, start, end time.Time) ([]models.SocialPost, error) {
	if truckID == "" {
		return nil, models.NewValidationError("truck_id", "is required")
	}
	if start.After(end) {
		return nil, models.NewValidationError("start", "must not be after end")
	}
	return s.posts.ListScheduled(ctx, truckID, start, end)
}

func (s *PostService) GetTemplates(ctx context.Context, truckID string, category *string) ([]models.SocialPost, error) {
	if truckID == "" {
		return nil, models.NewValidationError("truck_id", "is required")
	}
	if category != nil && *category == "" {
		category = nil
	}
	return s.posts.ListTemplates(ctx, truckID, category)
}

// ScheduledPostsFor is GetScheduledPosts limited to what actor may see.
// Owners only get their own posts back even when they name another truck.
func (s *PostService) ScheduledPostsFor(ctx context.Context, actor Actor, truckID string, start, end time.Time) ([]models.SocialPost, error) {
	posts, err := s.GetScheduledPosts(ctx, truckID, start, end)
	if err != nil {
		return nil, err
	}
	return ownedPosts(actor, posts), nil
}

// TemplatesFor is GetTemplates limited to what actor may see.
func (s *PostService) TemplatesFor(ctx context.Context, actor Actor, truckID string, category *string) ([]models.SocialPost, error) {
	posts, err := s.GetTemplates(ctx, truckID, category)
	if err != nil {
		return nil, err
	}
	return ownedPosts(actor, posts), nil
}

func ownedPosts(actor Actor, posts []models.SocialPost) []models.SocialPost {
	out := posts[:0]
	for _, p := range posts {
		if actor.owns(p.OwnerID) {
			out = append(out, p)
		}
	}
	return out
}

// CreateFromTemplate starts a new draft from a template's content.
func (s *PostService) CreateFromTemplate(ctx context.Context, templateID uuid.UUID, actor Actor, in FromTemplateInput) (*models.SocialPost, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	tpl, err := s.Get(ctx, templateID, actor)
	if err != nil {
		return nil, err
	}
	if !tpl.IsTemplate || tpl.Status == models.PostStatusDeleted {
		return nil, models.NewNotFoundError("template", templateID)
	}

	create := CreatePostInput{
		TruckID:     tpl.TruckID,
		CampaignID:  in.CampaignID,
		Text:        tpl.Text,
		Hashtags:    tpl.Hashtags,
		Mentions:    tpl.Mentions,
		Images:      tpl.Images,
		Link:        tpl.Link,
		AIGenerated: tpl.AIGenerated,
		AIPrompt:    tpl.AIPrompt,
	}
	if in.TruckID != "" {
		create.TruckID = in.TruckID
	}
	if in.Text != nil {
		create.Text = *in.Text
	}
	for _, pl := range tpl.Platforms {
		create.Platforms = append(create.Platforms, PlatformTarget{Name: pl.Name})
	}
	return s.Create(ctx, actor, create)
}

func (s *PostService) publishPostEvent(ctx context.Context, eventType string, p *models.SocialPost, extra map[string]any) {
	payload := map[string]any{
		"post_id":  p.ID.String(),
		"truck_id": p.TruckID,
		"status":   p.Status,
	}
	if p.CampaignID != nil {
		payload["campaign_id"] = p.CampaignID.String()
	}
	if p.ScheduledTime != nil {
		payload["scheduled_time"] = p.ScheduledTime.UTC().Format(time.RFC3339)
	}
	platforms := make([]string, 0, len(p.Platforms))
	for _, pl := range p.Platforms {
		platforms = append(platforms, pl.Name)
	}
	payload["platforms"] = platforms
	for k, v := range extra {
		payload[k] = v
	}

	if err := s.publisher.Publish(ctx, events.ChannelPost, events.Event{Type: eventType, Payload: payload}); err != nil {
		observability.EventPublishFailures.WithLabelValues(eventType).Inc()
		s.log.Warn("publish post event failed",
			zap.String("type", eventType),
			zap.String("post_id", p.ID.String()),
			zap.Error(err),
		)
	}
}

func targetNames(targets []PlatformTarget) []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	return names
}

// normalizeTags trims the marker prefix and whitespace, drops empties and
// collapses duplicates case-insensitively, keeping first-seen order.
func normalizeTags(tags []string, prefix string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), prefix))
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
