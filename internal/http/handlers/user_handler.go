package handlers

import (
	"github.com/food-truck-finder/backend/internal/http/dto"
	"github.com/food-truck-finder/backend/internal/middleware"
	"github.com/food-truck-finder/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// GetMe echoes the caller's identity as the token states it.
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	role := middleware.GetRole(c)
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"owner_id":    middleware.GetOwnerID(c),
		"role":        role,
		"permissions": rbac.RolePermissions[role],
	}})
}
