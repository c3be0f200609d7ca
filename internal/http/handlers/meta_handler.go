package handlers

import (
	"github.com/food-truck-finder/backend/internal/http/dto"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var campaignTypes = []MetaOption{
	{ID: models.CampaignTypePromotion, Label: "Promotion"},
	{ID: models.CampaignTypeContest, Label: "Contest"},
	{ID: models.CampaignTypeEvent, Label: "Event"},
	{ID: models.CampaignTypeSeasonal, Label: "Seasonal"},
	{ID: models.CampaignTypeProductLaunch, Label: "Product launch"},
	{ID: models.CampaignTypeAwareness, Label: "Awareness"},
}

var platforms = []MetaOption{
	{ID: models.PlatformInstagram, Label: "Instagram"},
	{ID: models.PlatformFacebook, Label: "Facebook"},
	{ID: models.PlatformTwitter, Label: "X (Twitter)"},
	{ID: models.PlatformLinkedIn, Label: "LinkedIn"},
	{ID: models.PlatformTikTok, Label: "TikTok"},
}

func (h *MetaHandler) GetCampaignTypes(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaignTypes})
}

// GetPlatforms lists the supported platforms and the caption limit shared
// by all of them.
func (h *MetaHandler) GetPlatforms(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"platforms":       platforms,
		"max_text_length": models.MaxPostTextLength,
	}})
}
