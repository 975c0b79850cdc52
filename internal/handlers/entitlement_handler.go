package handlers

import (
	"context"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/CassieCamp/arete3-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type entitlementComputer interface {
	Compute(ctx context.Context, userID int64) (*models.EntitlementSnapshot, error)
}

type EntitlementHandler struct {
	service entitlementComputer
}

func NewEntitlementHandler(service *services.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{service: service}
}

func (h *EntitlementHandler) GetMyEntitlement(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	snapshot, err := h.service.Compute(c.Context(), actorID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute entitlement"})
	}

	return c.JSON(fiber.Map{"entitlement": snapshot})
}
