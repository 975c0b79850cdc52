package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/CassieCamp/arete3-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type entryApplicationService interface {
	Create(ctx context.Context, userID int64, input services.CreateEntryInput) (*models.Entry, error)
	List(ctx context.Context, userID int64, limit, offset int) ([]models.Entry, int, error)
}

type EntryHandler struct {
	service entryApplicationService
}

func NewEntryHandler(service *services.EntryService) *EntryHandler {
	return &EntryHandler{service: service}
}

type createEntryRequest struct {
	Title   *string `json:"title"`
	Content string  `json:"content"`
}

func (h *EntryHandler) CreateEntry(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "user" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content must not be empty"})
	}

	entry, err := h.service.Create(c.Context(), actorID, services.CreateEntryInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return mapEntryError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"entry": entry})
}

func (h *EntryHandler) ListEntries(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "user" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveQueryInt(c, "page", 1)
	limit := parsePositiveQueryInt(c, "limit", defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	entries, total, err := h.service.List(c.Context(), actorID, limit, (page-1)*limit)
	if err != nil {
		return mapEntryError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries":    entries,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func parsePositiveQueryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func mapEntryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrEntryLimitReached):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Free entry limit reached"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process entry request"})
	}
}
