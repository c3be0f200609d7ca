package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxPostTextLength is the longest caption accepted across platforms.
const MaxPostTextLength = 2200

// Post statuses
const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
	PostStatusDeleted   = "deleted"
)

// Per-platform publish statuses
const (
	PlatformStatusPending   = "pending"
	PlatformStatusPublished = "published"
	PlatformStatusFailed    = "failed"
)

var ErrPlatformNotTargeted = errors.New("platform not targeted by post")

var ValidPostTransitions = map[string][]string{
	PostStatusDraft:     {PostStatusScheduled, PostStatusDeleted},
	PostStatusScheduled: {PostStatusDraft, PostStatusPublished, PostStatusFailed, PostStatusDeleted},
	PostStatusFailed:    {PostStatusScheduled, PostStatusDraft, PostStatusDeleted},
	PostStatusPublished: {PostStatusDeleted},
	PostStatusDeleted:   {},
}

func IsValidPostTransition(from, to string) bool {
	allowed, ok := ValidPostTransitions[from]
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

type PostImage struct {
	URL    string `json:"url" validate:"required,url"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty" validate:"gte=0"`
	Height int    `json:"height,omitempty" validate:"gte=0"`
}

// PostPlatform is the publish bookkeeping for one targeted platform.
type PostPlatform struct {
	Name   string `json:"name"`
	PostID string `json:"post_id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	URL    string `json:"url,omitempty"`
}

type PostAnalytics struct {
	Impressions int64      `json:"impressions"`
	Reach       int64      `json:"reach"`
	Engagement  int64      `json:"engagement"`
	Likes       int64      `json:"likes"`
	Comments    int64      `json:"comments"`
	Shares      int64      `json:"shares"`
	Saves       int64      `json:"saves"`
	Clicks      int64      `json:"clicks"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

type PostAnalyticsPatch struct {
	Impressions *int64 `json:"impressions,omitempty" validate:"omitempty,gte=0"`
	Reach       *int64 `json:"reach,omitempty" validate:"omitempty,gte=0"`
	Engagement  *int64 `json:"engagement,omitempty" validate:"omitempty,gte=0"`
	Likes       *int64 `json:"likes,omitempty" validate:"omitempty,gte=0"`
	Comments    *int64 `json:"comments,omitempty" validate:"omitempty,gte=0"`
	Shares      *int64 `json:"shares,omitempty" validate:"omitempty,gte=0"`
	Saves       *int64 `json:"saves,omitempty" validate:"omitempty,gte=0"`
	Clicks      *int64 `json:"clicks,omitempty" validate:"omitempty,gte=0"`
}

type SocialPost struct {
	ID               uuid.UUID      `json:"id"`
	TruckID          string         `json:"truck_id"`
	OwnerID          string         `json:"owner_id"`
	CampaignID       *uuid.UUID     `json:"campaign_id,omitempty"`
	CampaignName     *string        `json:"campaign_name,omitempty"`
	Text             string         `json:"text"`
	Hashtags         []string       `json:"hashtags"`
	Mentions         []string       `json:"mentions"`
	Images           []PostImage    `json:"images"`
	Link             *string        `json:"link,omitempty"`
	Status           string         `json:"status"`
	ScheduledTime    *time.Time     `json:"scheduled_time,omitempty"`
	PublishedTime    *time.Time     `json:"published_time,omitempty"`
	Platforms        []PostPlatform `json:"platforms"`
	IsTemplate       bool           `json:"is_template"`
	TemplateName     *string        `json:"template_name,omitempty"`
	TemplateCategory *string        `json:"template_category,omitempty"`
	Analytics        PostAnalytics  `json:"analytics"`
	AIGenerated      bool           `json:"ai_generated"`
	AIPrompt         *string        `json:"ai_prompt,omitempty"`
	Version          int64          `json:"version"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// EngagementRate is engagement per reach as a percentage rounded to two
// decimals; zero when nothing was reached.
func (p *SocialPost) EngagementRate() float64 {
	if p.Analytics.Reach == 0 {
		return 0
	}
	rate := 100 * float64(p.Analytics.Engagement) / float64(p.Analytics.Reach)
	return math.Round(rate*100) / 100
}

func (p *SocialPost) platform(name string) *PostPlatform {
	for i := range p.Platforms {
		if p.Platforms[i].Name == name {
			return &p.Platforms[i]
		}
	}
	return nil
}

// AllPlatformsPublished reports whether every targeted platform has
// published. A post without platforms has nothing published.
func (p *SocialPost) AllPlatformsPublished() bool {
	if len(p.Platforms) == 0 {
		return false
	}
	for _, pl := range p.Platforms {
		if pl.Status != PlatformStatusPublished {
			return false
		}
	}
	return true
}

// MarkPlatformPublished records a successful publish on one platform. The
// post itself flips to published only once every platform has published;
// partial success leaves the overall status alone. It reports whether
// anything changed.
func (p *SocialPost) MarkPlatformPublished(name, externalID, url string, now time.Time) (bool, error) {
	pl := p.platform(name)
	if pl == nil {
		return false, ErrPlatformNotTargeted
	}
	if pl.Status == PlatformStatusPublished && pl.PostID == externalID && pl.URL == url {
		return false, nil
	}
	pl.PostID = externalID
	pl.URL = url
	pl.Status = PlatformStatusPublished
	pl.Error = ""

	p.SettlePublished(now)
	return true, nil
}

// SettlePublished flips a live post to published once every platform it
// targets has published. It reports whether the status changed.
func (p *SocialPost) SettlePublished(now time.Time) bool {
	if p.Status == PostStatusPublished || p.Status == PostStatusDeleted || p.IsTemplate {
		return false
	}
	if !p.AllPlatformsPublished() {
		return false
	}
	t := now
	p.Status = PostStatusPublished
	p.PublishedTime = &t
	return true
}

// AnyPlatformPublished reports whether at least one platform has published.
func (p *SocialPost) AnyPlatformPublished() bool {
	for _, pl := range p.Platforms {
		if pl.Status == PlatformStatusPublished {
			return true
		}
	}
	return false
}

// MarkPlatformFailed records a publish failure on one platform. The overall
// status is deliberately left as is.
func (p *SocialPost) MarkPlatformFailed(name, msg string) (bool, error) {
	pl := p.platform(name)
	if pl == nil {
		return false, ErrPlatformNotTargeted
	}
	if pl.Status == PlatformStatusFailed && pl.Error == msg {
		return false, nil
	}
	pl.Status = PlatformStatusFailed
	pl.Error = msg
	return true, nil
}

func (p *SocialPost) ApplyAnalytics(patch PostAnalyticsPatch, now time.Time) {
	a := &p.Analytics
	set := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&a.Impressions, patch.Impressions)
	set(&a.Reach, patch.Reach)
	set(&a.Engagement, patch.Engagement)
	set(&a.Likes, patch.Likes)
	set(&a.Comments, patch.Comments)
	set(&a.Shares, patch.Shares)
	set(&a.Saves, patch.Saves)
	set(&a.Clicks, patch.Clicks)
	t := now
	a.LastUpdated = &t
}

// NewPlatforms builds pending platform entries for the given names.
func NewPlatforms(names []string) []PostPlatform {
	out := make([]PostPlatform, 0, len(names))
	for _, n := range names {
		out = append(out, PostPlatform{Name: n, Status: PlatformStatusPending})
	}
	return out
}
