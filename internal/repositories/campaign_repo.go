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

const campaignColumns = `
	id, truck_id, owner_id, name, description, type, status, start_date, end_date,
	goals, budget_total, budget_spent, budget_currency, platforms, promotion, contest,
	total_posts, total_reach, total_engagement, total_clicks, conversion_rate, roi,
	new_followers, analytics_updated_at, post_ids, version, created_at, updated_at`

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func scanCampaign(row scanner) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(
		&c.ID, &c.TruckID, &c.OwnerID, &c.Name, &c.Description, &c.Type, &c.Status,
		&c.StartDate, &c.EndDate, &c.Goals,
		&c.Budget.Total, &c.Budget.Spent, &c.Budget.Currency,
		&c.Platforms, &c.Promotion, &c.Contest,
		&c.Analytics.TotalPosts, &c.Analytics.TotalReach, &c.Analytics.TotalEngagement,
		&c.Analytics.TotalClicks, &c.Analytics.ConversionRate, &c.Analytics.ROI,
		&c.Analytics.NewFollowers, &c.Analytics.LastUpdated,
		&c.PostIDs, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (truck_id, owner_id, name, description, type, status, start_date, end_date,
		                       goals, budget_total, budget_spent, budget_currency, platforms, promotion, contest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, total_posts, post_ids, version, created_at, updated_at
	`, c.TruckID, c.OwnerID, c.Name, c.Description, c.Type, c.Status, c.StartDate, c.EndDate,
		c.Goals, c.Budget.Total, c.Budget.Spent, c.Budget.Currency, nonNilStrings(c.Platforms),
		c.Promotion, c.Contest,
	).Scan(&c.ID, &c.Analytics.TotalPosts, &c.PostIDs, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	return translate("campaign.create", "campaign", c.ID, err)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, translate("campaign.get", "campaign", id, err)
	}
	return c, nil
}

// Update writes every mutable field of c provided the stored version still
// equals c.Version. Post membership is owned by AddPost/RemovePost/SetPosts
// and is not written here. On success c carries the new version.
func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns SET
			name = $3, description = $4, type = $5, status = $6, start_date = $7, end_date = $8,
			goals = $9, budget_total = $10, budget_spent = $11, budget_currency = $12,
			platforms = $13, promotion = $14, contest = $15,
			total_reach = $16, total_engagement = $17, total_clicks = $18,
			conversion_rate = $19, roi = $20, new_followers = $21, analytics_updated_at = $22,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, c.ID, c.Version, c.Name, c.Description, c.Type, c.Status, c.StartDate, c.EndDate,
		c.Goals, c.Budget.Total, c.Budget.Spent, c.Budget.Currency,
		nonNilStrings(c.Platforms), c.Promotion, c.Contest,
		c.Analytics.TotalReach, c.Analytics.TotalEngagement, c.Analytics.TotalClicks,
		c.Analytics.ConversionRate, c.Analytics.ROI, c.Analytics.NewFollowers, c.Analytics.LastUpdated,
	).Scan(&c.Version, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return versionMiss(ctx, r.pool, "campaigns", "campaign", c.ID)
	}
	return translate("campaign.update", "campaign", c.ID, err)
}

func (r *CampaignRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return translate("campaign.delete", "campaign", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("campaign", id)
	}
	return nil
}

// AddPost appends postID to the campaign's post set in a single statement,
// bumping total_posts only when the id was absent. Concurrent calls for
// different posts never overwrite each other.
func (r *CampaignRepo) AddPost(ctx context.Context, id, postID uuid.UUID) (*models.Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `
		UPDATE campaigns SET
			post_ids = array_append(post_ids, $2::uuid),
			total_posts = total_posts + 1,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND NOT ($2::uuid = ANY(post_ids))
		RETURNING `+campaignColumns, id, postID))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either already a member or no such campaign.
		return r.GetByID(ctx, id)
	}
	if err != nil {
		return nil, translate("campaign.add_post", "campaign", id, err)
	}
	return c, nil
}

func (r *CampaignRepo) RemovePost(ctx context.Context, id, postID uuid.UUID) (*models.Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `
		UPDATE campaigns SET
			post_ids = array_remove(post_ids, $2::uuid),
			total_posts = GREATEST(total_posts - 1, 0),
			version = version + 1, updated_at = now()
		WHERE id = $1 AND $2::uuid = ANY(post_ids)
		RETURNING `+campaignColumns, id, postID))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetByID(ctx, id)
	}
	if err != nil {
		return nil, translate("campaign.remove_post", "campaign", id, err)
	}
	return c, nil
}

// SetPosts replaces the post set wholesale and realigns total_posts with it,
// provided the stored version still equals version.
func (r *CampaignRepo) SetPosts(ctx context.Context, id uuid.UUID, version int64, postIDs []uuid.UUID) (*models.Campaign, error) {
	if postIDs == nil {
		postIDs = []uuid.UUID{}
	}
	c, err := scanCampaign(r.pool.QueryRow(ctx, `
		UPDATE campaigns SET
			post_ids = $2::uuid[],
			total_posts = cardinality($2::uuid[]),
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3
		RETURNING `+campaignColumns, id, postIDs, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, versionMiss(ctx, r.pool, "campaigns", "campaign", id)
	}
	if err != nil {
		return nil, translate("campaign.set_posts", "campaign", id, err)
	}
	return c, nil
}

type CampaignFilter struct {
	TruckID *string
	OwnerID *string
	Status  *string
	Limit   int
	Offset  int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.TruckID != nil {
		where = append(where, fmt.Sprintf("truck_id = $%d", argIdx))
		args = append(args, *f.TruckID)
		argIdx++
	}
	if f.OwnerID != nil {
		where = append(where, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, *f.OwnerID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + joinWhere(where) +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	return r.query(ctx, "campaign.list", query, args...)
}

// ListActive returns the truck's active campaigns whose window contains now.
func (r *CampaignRepo) ListActive(ctx context.Context, truckID string, now time.Time) ([]models.Campaign, error) {
	return r.query(ctx, "campaign.list_active", `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE truck_id = $1 AND status = 'active' AND start_date <= $2 AND end_date >= $2
		ORDER BY start_date ASC, id ASC
	`, truckID, now)
}

// ListExpiredActive returns campaigns still stored as active whose window
// closed before now.
func (r *CampaignRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	return r.query(ctx, "campaign.list_expired", `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = 'active' AND end_date < $1
		ORDER BY end_date ASC, id ASC
		LIMIT $2
	`, now, limit)
}

func (r *CampaignRepo) query(ctx context.Context, op, sql string, args ...any) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, models.NewStorageError(op, err)
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, models.NewStorageError(op, err)
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError(op, err)
	}
	return campaigns, nil
}
