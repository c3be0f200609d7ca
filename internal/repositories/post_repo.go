package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/food-truck-finder/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postColumns = `
	id, truck_id, owner_id, campaign_id, campaign_name, text, hashtags, mentions, images, link,
	status, scheduled_time, published_time, platforms, is_template, template_name, template_category,
	impressions, reach, engagement, likes, comments, shares, saves, clicks, analytics_updated_at,
	ai_generated, ai_prompt, version, created_at, updated_at`

type PostRepo struct {
	pool *pgxpool.Pool
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

func scanPost(row scanner) (*models.SocialPost, error) {
	var p models.SocialPost
	a := &p.Analytics
	err := row.Scan(
		&p.ID, &p.TruckID, &p.OwnerID, &p.CampaignID, &p.CampaignName, &p.Text,
		&p.Hashtags, &p.Mentions, &p.Images, &p.Link,
		&p.Status, &p.ScheduledTime, &p.PublishedTime, &p.Platforms,
		&p.IsTemplate, &p.TemplateName, &p.TemplateCategory,
		&a.Impressions, &a.Reach, &a.Engagement, &a.Likes, &a.Comments, &a.Shares, &a.Saves, &a.Clicks,
		&a.LastUpdated, &p.AIGenerated, &p.AIPrompt, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func postJSON(p *models.SocialPost) (images []models.PostImage, platforms []models.PostPlatform) {
	images, platforms = p.Images, p.Platforms
	if images == nil {
		images = []models.PostImage{}
	}
	if platforms == nil {
		platforms = []models.PostPlatform{}
	}
	return images, platforms
}

func (r *PostRepo) Create(ctx context.Context, p *models.SocialPost) error {
	images, platforms := postJSON(p)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO social_posts (truck_id, owner_id, campaign_id, campaign_name, text, hashtags, mentions,
		                          images, link, status, scheduled_time, platforms, is_template,
		                          template_name, template_category, ai_generated, ai_prompt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, version, created_at, updated_at
	`, p.TruckID, p.OwnerID, p.CampaignID, p.CampaignName, p.Text,
		nonNilStrings(p.Hashtags), nonNilStrings(p.Mentions), images, p.Link, p.Status,
		p.ScheduledTime, platforms, p.IsTemplate, p.TemplateName, p.TemplateCategory,
		p.AIGenerated, p.AIPrompt,
	).Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return translate("post.create", "post", p.ID, err)
}

func (r *PostRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SocialPost, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM social_posts WHERE id = $1`, id))
	if err != nil {
		return nil, translate("post.get", "post", id, err)
	}
	return p, nil
}

// Update is a version-checked write of every mutable column. On success p
// carries the new version.
func (r *PostRepo) Update(ctx context.Context, p *models.SocialPost) error {
	images, platforms := postJSON(p)
	a := p.Analytics
	err := r.pool.QueryRow(ctx, `
		UPDATE social_posts SET
			campaign_id = $3, campaign_name = $4, text = $5, hashtags = $6, mentions = $7,
			images = $8, link = $9, status = $10, scheduled_time = $11, published_time = $12,
			platforms = $13, template_name = $14, template_category = $15,
			impressions = $16, reach = $17, engagement = $18, likes = $19, comments = $20,
			shares = $21, saves = $22, clicks = $23, analytics_updated_at = $24,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, p.ID, p.Version, p.CampaignID, p.CampaignName, p.Text,
		nonNilStrings(p.Hashtags), nonNilStrings(p.Mentions), images, p.Link, p.Status,
		p.ScheduledTime, p.PublishedTime, platforms, p.TemplateName, p.TemplateCategory,
		a.Impressions, a.Reach, a.Engagement, a.Likes, a.Comments, a.Shares, a.Saves, a.Clicks,
		a.LastUpdated,
	).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return versionMiss(ctx, r.pool, "social_posts", "post", p.ID)
	}
	return translate("post.update", "post", p.ID, err)
}

type PostFilter struct {
	TruckID    *string
	OwnerID    *string
	CampaignID *uuid.UUID
	Status     *string
	IsTemplate *bool
	Limit      int
	Offset     int
}

func (r *PostRepo) List(ctx context.Context, f PostFilter) ([]models.SocialPost, error) {
	args := []any{}
	argIdx := 1
	where := []string{}

	add := func(cond string, v any) {
		where = append(where, fmt.Sprintf(cond, argIdx))
		args = append(args, v)
		argIdx++
	}
	if f.TruckID != nil {
		add("truck_id = $%d", *f.TruckID)
	}
	if f.OwnerID != nil {
		add("owner_id = $%d", *f.OwnerID)
	}
	if f.CampaignID != nil {
		add("campaign_id = $%d", *f.CampaignID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	} else {
		where = append(where, "status <> 'deleted'")
	}
	if f.IsTemplate != nil {
		add("is_template = $%d", *f.IsTemplate)
	}

	query := `SELECT ` + postColumns + ` FROM social_posts` + joinWhere(where) +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	return r.query(ctx, "post.list", query, args...)
}

// ListScheduled returns the truck's scheduled posts with scheduled_time in
// [start, end], earliest first.
func (r *PostRepo) ListScheduled(ctx context.Context, truckID string, start, end time.Time) ([]models.SocialPost, error) {
	return r.query(ctx, "post.list_scheduled", `
		SELECT `+postColumns+` FROM social_posts
		WHERE truck_id = $1 AND status = 'scheduled'
		  AND scheduled_time >= $2 AND scheduled_time <= $3
		ORDER BY scheduled_time ASC, id ASC
	`, truckID, start, end)
}

// ListTemplates returns the truck's templates, newest first. Deleted
// templates are excluded.
func (r *PostRepo) ListTemplates(ctx context.Context, truckID string, category *string) ([]models.SocialPost, error) {
	query := `
		SELECT ` + postColumns + ` FROM social_posts
		WHERE truck_id = $1 AND is_template AND status <> 'deleted'`
	args := []any{truckID}
	if category != nil {
		query += ` AND template_category = $2`
		args = append(args, *category)
	}
	query += ` ORDER BY created_at DESC, id`
	return r.query(ctx, "post.list_templates", query, args...)
}

// ListIDsByCampaign returns ids of live posts pointing at the campaign, in
// creation order.
func (r *PostRepo) ListIDsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM social_posts
		WHERE campaign_id = $1 AND status <> 'deleted'
		ORDER BY created_at ASC, id ASC
	`, campaignID)
	if err != nil {
		return nil, models.NewStorageError("post.list_ids_by_campaign", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, models.NewStorageError("post.list_ids_by_campaign", err)
	}
	return ids, nil
}

func (r *PostRepo) query(ctx context.Context, op, sql string, args ...any) ([]models.SocialPost, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, models.NewStorageError(op, err)
	}
	defer rows.Close()

	posts := []models.SocialPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, models.NewStorageError(op, err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError(op, err)
	}
	return posts, nil
}
