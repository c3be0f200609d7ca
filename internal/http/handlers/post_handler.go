package handlers

import (
	"strconv"
	"time"

	"github.com/food-truck-finder/backend/internal/http/dto"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/repositories"
	"github.com/food-truck-finder/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultScheduleWindow bounds GET /posts/scheduled when no end is given.
const defaultScheduleWindow = 7 * 24 * time.Hour

type PostHandler struct {
	postService *services.PostService
	log         *zap.Logger
	now         func() time.Time
}

func NewPostHandler(postService *services.PostService, log *zap.Logger) *PostHandler {
	return &PostHandler{postService: postService, log: log, now: time.Now}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req services.CreatePostInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	post, err := h.postService.Create(c.UserContext(), actorFrom(c), req)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	post, err := h.postService.Get(c.UserContext(), id, actorFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	filter := repositories.PostFilter{
		TruckID: queryString(c, "truck_id"),
		Status:  queryString(c, "status"),
		Limit:   c.QueryInt("limit", 20),
		Offset:  c.QueryInt("offset", 0),
	}
	if v := c.Query("campaign_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return writeError(c, h.log, models.NewValidationError("campaign_id", "must be a UUID"))
		}
		filter.CampaignID = &id
	}
	if v := c.Query("is_template"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return writeError(c, h.log, models.NewValidationError("is_template", "must be a boolean"))
		}
		filter.IsTemplate = &b
	}

	posts, err := h.postService.List(c.UserContext(), actorFrom(c), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostViews(posts)})
}

// ScheduledPosts lists a truck's queue between start and end, defaulting
// to the coming week.
func (h *PostHandler) ScheduledPosts(c *fiber.Ctx) error {
	start, err := queryTime(c, "start", h.now())
	if err != nil {
		return writeError(c, h.log, err)
	}
	end, err := queryTime(c, "end", start.Add(defaultScheduleWindow))
	if err != nil {
		return writeError(c, h.log, err)
	}

	posts, err := h.postService.ScheduledPostsFor(c.UserContext(), actorFrom(c), c.Query("truck_id"), start, end)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostViews(posts)})
}

func (h *PostHandler) Templates(c *fiber.Ctx) error {
	posts, err := h.postService.TemplatesFor(c.UserContext(), actorFrom(c), c.Query("truck_id"), queryString(c, "category"))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostViews(posts)})
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req services.UpdatePostInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	post, err := h.postService.Update(c.UserContext(), id, actorFrom(c), req)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	if err := h.postService.Delete(c.UserContext(), id, actorFrom(c)); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req dto.SchedulePostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	post, err := h.postService.Schedule(c.UserContext(), id, actorFrom(c), req.ScheduledTime)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

func (h *PostHandler) UnschedulePost(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	post, err := h.postService.Unschedule(c.UserContext(), id, actorFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

func (h *PostHandler) CreateFromTemplate(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req services.FromTemplateInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}

	post, err := h.postService.CreateFromTemplate(c.UserContext(), id, actorFrom(c), req)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

// PlatformPublished is the publisher's success callback for one platform.
func (h *PostHandler) PlatformPublished(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req dto.PlatformPublishedRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.PostID == "" {
		return writeError(c, h.log, models.NewValidationError("post_id", "is required"))
	}

	post, err := h.postService.MarkPlatformPublished(c.UserContext(), id, c.Params("platform"), req.PostID, req.URL)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

func (h *PostHandler) PlatformFailed(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req dto.PlatformFailedRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	post, err := h.postService.MarkPlatformFailed(c.UserContext(), id, c.Params("platform"), req.Error)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}

func (h *PostHandler) UpdateAnalytics(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req models.PostAnalyticsPatch
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	post, err := h.postService.UpdateAnalytics(c.UserContext(), id, req)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewPostView(post)})
}
