package dto

import (
	"time"

	"github.com/food-truck-finder/backend/internal/models"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// CampaignView is a campaign with the fields derived from the clock at
// read time.
type CampaignView struct {
	*models.Campaign
	Progress        int    `json:"progress"`
	DaysRemaining   int    `json:"days_remaining"`
	EffectiveStatus string `json:"effective_status"`
}

func NewCampaignView(c *models.Campaign, now time.Time) CampaignView {
	return CampaignView{
		Campaign:        c,
		Progress:        c.Progress(now),
		DaysRemaining:   c.DaysRemaining(now),
		EffectiveStatus: c.EffectiveStatus(now),
	}
}

func NewCampaignViews(cs []models.Campaign, now time.Time) []CampaignView {
	out := make([]CampaignView, 0, len(cs))
	for i := range cs {
		out = append(out, NewCampaignView(&cs[i], now))
	}
	return out
}

type PostView struct {
	*models.SocialPost
	EngagementRate float64 `json:"engagement_rate"`
}

func NewPostView(p *models.SocialPost) PostView {
	return PostView{SocialPost: p, EngagementRate: p.EngagementRate()}
}

func NewPostViews(ps []models.SocialPost) []PostView {
	out := make([]PostView, 0, len(ps))
	for i := range ps {
		out = append(out, NewPostView(&ps[i]))
	}
	return out
}
