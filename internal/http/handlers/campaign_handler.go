package handlers

import (
	"github.com/food-truck-finder/backend/internal/http/dto"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/food-truck-finder/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, log: log}
}

func (h *CampaignHandler) view(c *models.Campaign) dto.CampaignView {
	return dto.NewCampaignView(c, h.campaignService.Now())
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req services.CreateCampaignInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign, err := h.campaignService.Create(c.UserContext(), actorFrom(c), req)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	campaign, err := h.campaignService.Get(c.UserContext(), id, actorFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := repositories.CampaignFilter{
		TruckID: queryString(c, "truck_id"),
		Status:  queryString(c, "status"),
		Limit:   c.QueryInt("limit", 20),
		Offset:  c.QueryInt("offset", 0),
	}

	campaigns, err := h.campaignService.List(c.UserContext(), actorFrom(c), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewCampaignViews(campaigns, h.campaignService.Now())})
}

// ActiveCampaigns lists the campaigns running right now for a truck.
func (h *CampaignHandler) ActiveCampaigns(c *fiber.Ctx) error {
	now := h.campaignService.Now()
	campaigns, err := h.campaignService.GetActiveCampaigns(c.UserContext(), c.Query("truck_id"), now)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewCampaignViews(campaigns, now)})
}

func (h *CampaignHandler) UpdateCampaign(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req services.UpdateCampaignInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign, err := h.campaignService.Update(c.UserContext(), id, actorFrom(c), req)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

func (h *CampaignHandler) ChangeStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req dto.ChangeCampaignStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign, err := h.campaignService.ChangeStatus(c.UserContext(), id, actorFrom(c), req.Status)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

func (h *CampaignHandler) DeleteCampaign(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	if err := h.campaignService.Delete(c.UserContext(), id, actorFrom(c)); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CampaignHandler) AddPost(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req dto.LinkPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	postID, err := uuid.Parse(req.PostID)
	if err != nil {
		return writeError(c, h.log, models.NewValidationError("post_id", "must be a UUID"))
	}

	if _, err := h.campaignService.Get(c.UserContext(), id, actorFrom(c)); err != nil {
		return writeError(c, h.log, err)
	}
	campaign, err := h.campaignService.AddPost(c.UserContext(), id, postID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

func (h *CampaignHandler) RemovePost(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}
	postID, err := paramUUID(c, "postId")
	if err != nil {
		return writeError(c, h.log, err)
	}

	if _, err := h.campaignService.Get(c.UserContext(), id, actorFrom(c)); err != nil {
		return writeError(c, h.log, err)
	}
	campaign, err := h.campaignService.RemovePost(c.UserContext(), id, postID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

func (h *CampaignHandler) ReconcilePosts(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	if _, err := h.campaignService.Get(c.UserContext(), id, actorFrom(c)); err != nil {
		return writeError(c, h.log, err)
	}
	campaign, err := h.campaignService.ReconcilePosts(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

// UpdateAnalytics takes metrics from the analytics collector.
func (h *CampaignHandler) UpdateAnalytics(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req models.CampaignAnalyticsPatch
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign, err := h.campaignService.UpdateAnalytics(c.UserContext(), id, req)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: h.view(campaign)})
}

func (h *CampaignHandler) GetHistory(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	entries, err := h.campaignService.History(c.UserContext(), id, actorFrom(c), c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
