package handlers

import (
	"errors"
	"time"

	"github.com/food-truck-finder/backend/internal/http/dto"
	"github.com/food-truck-finder/backend/internal/middleware"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/rbac"
	"github.com/food-truck-finder/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// writeError maps service errors onto HTTP statuses. Storage and unknown
// errors are logged and reported without internal detail.
func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	resp := dto.ErrorResponse{RequestID: middleware.GetRequestID(c)}
	status := fiber.StatusInternalServerError

	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		status = fiber.StatusBadRequest
		resp.Error = ve.Message
		resp.Field = ve.Field
	case errors.Is(err, models.ErrNotFound):
		status = fiber.StatusNotFound
		resp.Error = err.Error()
	case errors.Is(err, models.ErrConflict):
		status = fiber.StatusConflict
		resp.Error = "resource was modified concurrently, retry"
	case errors.Is(err, models.ErrStorage):
		status = fiber.StatusServiceUnavailable
		resp.Error = "storage unavailable"
		log.Error("storage failure", zap.String("path", c.Path()), zap.String("request_id", resp.RequestID), zap.Error(err))
	default:
		resp.Error = "internal error"
		log.Error("unhandled error", zap.String("path", c.Path()), zap.String("request_id", resp.RequestID), zap.Error(err))
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		RequestID: middleware.GetRequestID(c),
	})
}

// actorFrom turns the authenticated caller into a service actor.
func actorFrom(c *fiber.Ctx) services.Actor {
	id := middleware.GetOwnerID(c)
	switch middleware.GetRole(c) {
	case rbac.RolePublisher:
		return services.Actor{ID: id, Type: models.ActorPublisher}
	case rbac.RoleCollector:
		return services.Actor{ID: id, Type: models.ActorCollector}
	}
	return services.OwnerActor(id)
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, models.NewValidationError(name, "must be a UUID")
	}
	return id, nil
}

func queryString(c *fiber.Ctx, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

func queryTime(c *fiber.Ctx, key string, def time.Time) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, models.NewValidationError(key, "must be an RFC 3339 timestamp")
	}
	return t, nil
}
