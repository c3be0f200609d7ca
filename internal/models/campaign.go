package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Campaign types
const (
	CampaignTypePromotion     = "promotion"
	CampaignTypeContest       = "contest"
	CampaignTypeEvent         = "event"
	CampaignTypeSeasonal      = "seasonal"
	CampaignTypeProductLaunch = "product-launch"
	CampaignTypeAwareness     = "awareness"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

// Social platforms a campaign or post can target.
const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformTwitter   = "twitter"
	PlatformLinkedIn  = "linkedin"
	PlatformTikTok    = "tiktok"
)

// Valid state transitions: from -> []to
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusDraft:     {CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusCompleted: {},
	CampaignStatusCancelled: {},
}

func IsValidCampaignTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type CampaignGoals struct {
	Reach        *int64 `json:"reach,omitempty" validate:"omitempty,gte=0"`
	Engagement   *int64 `json:"engagement,omitempty" validate:"omitempty,gte=0"`
	Sales        *int64 `json:"sales,omitempty" validate:"omitempty,gte=0"`
	NewCustomers *int64 `json:"new_customers,omitempty" validate:"omitempty,gte=0"`
}

type CampaignBudget struct {
	Total    float64 `json:"total" validate:"gte=0"`
	Spent    float64 `json:"spent" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
}

type CampaignPromotion struct {
	DiscountType  string  `json:"discount_type,omitempty"`
	DiscountValue float64 `json:"discount_value,omitempty"`
	PromoCode     string  `json:"promo_code,omitempty"`
	Terms         string  `json:"terms,omitempty"`
}

type CampaignContest struct {
	Prize                  string     `json:"prize,omitempty"`
	Rules                  string     `json:"rules,omitempty"`
	EntryMethod            string     `json:"entry_method,omitempty"`
	WinnerCount            int        `json:"winner_count,omitempty"`
	WinnerAnnouncementDate *time.Time `json:"winner_announcement_date,omitempty"`
}

type CampaignAnalytics struct {
	TotalPosts      int        `json:"total_posts"`
	TotalReach      int64      `json:"total_reach"`
	TotalEngagement int64      `json:"total_engagement"`
	TotalClicks     int64      `json:"total_clicks"`
	ConversionRate  float64    `json:"conversion_rate"`
	ROI             float64    `json:"roi"`
	NewFollowers    int64      `json:"new_followers"`
	LastUpdated     *time.Time `json:"last_updated,omitempty"`
}

// CampaignAnalyticsPatch carries the metrics reported by the analytics
// collector. Nil fields keep their stored value. Revenue is never stored; it
// only feeds the ROI computation.
type CampaignAnalyticsPatch struct {
	TotalReach      *int64   `json:"total_reach,omitempty" validate:"omitempty,gte=0"`
	TotalEngagement *int64   `json:"total_engagement,omitempty" validate:"omitempty,gte=0"`
	TotalClicks     *int64   `json:"total_clicks,omitempty" validate:"omitempty,gte=0"`
	ConversionRate  *float64 `json:"conversion_rate,omitempty" validate:"omitempty,gte=0"`
	NewFollowers    *int64   `json:"new_followers,omitempty" validate:"omitempty,gte=0"`
	Revenue         *float64 `json:"revenue,omitempty"`
}

type Campaign struct {
	ID          uuid.UUID          `json:"id"`
	TruckID     string             `json:"truck_id"`
	OwnerID     string             `json:"owner_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Type        string             `json:"type"`
	Status      string             `json:"status"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Goals       CampaignGoals      `json:"goals"`
	Budget      CampaignBudget     `json:"budget"`
	Platforms   []string           `json:"platforms"`
	Promotion   *CampaignPromotion `json:"promotion,omitempty"`
	Contest     *CampaignContest   `json:"contest,omitempty"`
	Analytics   CampaignAnalytics  `json:"analytics"`
	PostIDs     []uuid.UUID        `json:"post_ids"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Progress returns how much of the campaign window has elapsed at now, as a
// whole percentage in [0, 100]. A zero-length window counts as fully elapsed
// once it starts.
func (c *Campaign) Progress(now time.Time) int {
	if now.Before(c.StartDate) {
		return 0
	}
	if now.After(c.EndDate) {
		return 100
	}
	total := c.EndDate.Sub(c.StartDate)
	if total <= 0 {
		return 100
	}
	elapsed := now.Sub(c.StartDate)
	p := int(math.Round(100 * float64(elapsed) / float64(total)))
	return min(max(p, 0), 100)
}

// DaysRemaining returns the number of started days left until EndDate,
// never negative.
func (c *Campaign) DaysRemaining(now time.Time) int {
	hours := c.EndDate.Sub(now).Hours()
	if hours <= 0 {
		return 0
	}
	return int(math.Ceil(hours / 24))
}

// EffectiveStatus is the status as observed at now: an active campaign whose
// window has closed reads as completed. The stored status is not touched.
func (c *Campaign) EffectiveStatus(now time.Time) string {
	if c.Status == CampaignStatusActive && now.After(c.EndDate) {
		return CampaignStatusCompleted
	}
	return c.Status
}

// IsRunning reports whether the campaign is active and now falls inside its
// window, bounds included.
func (c *Campaign) IsRunning(now time.Time) bool {
	return c.Status == CampaignStatusActive && !now.Before(c.StartDate) && !now.After(c.EndDate)
}

func (c *Campaign) HasPost(postID uuid.UUID) bool {
	for _, id := range c.PostIDs {
		if id == postID {
			return true
		}
	}
	return false
}

// ApplyAnalytics merges p into the campaign analytics. ROI is recomputed
// only when the patch carries revenue and budget has been spent.
func (c *Campaign) ApplyAnalytics(p CampaignAnalyticsPatch, now time.Time) {
	a := &c.Analytics
	if p.TotalReach != nil {
		a.TotalReach = *p.TotalReach
	}
	if p.TotalEngagement != nil {
		a.TotalEngagement = *p.TotalEngagement
	}
	if p.TotalClicks != nil {
		a.TotalClicks = *p.TotalClicks
	}
	if p.ConversionRate != nil {
		a.ConversionRate = *p.ConversionRate
	}
	if p.NewFollowers != nil {
		a.NewFollowers = *p.NewFollowers
	}
	if p.Revenue != nil && c.Budget.Spent > 0 {
		a.ROI = ComputeROI(*p.Revenue, c.Budget.Spent)
	}
	t := now
	a.LastUpdated = &t
}

// ComputeROI returns the return on spend as a percentage.
func ComputeROI(revenue, spent float64) float64 {
	return (revenue - spent) / spent * 100
}
