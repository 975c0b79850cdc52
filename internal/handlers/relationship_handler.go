package handlers

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/CassieCamp/arete3-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type invitationApplicationService interface {
	Invite(ctx context.Context, initiatorID int64, initiatorRole models.RelationshipRole, counterpartEmail string, message *string) (*models.Relationship, error)
	Resend(ctx context.Context, relationshipID, requesterID int64) (*models.Relationship, error)
	Respond(ctx context.Context, relationshipID, responderID int64, decision models.RelationshipStatus) (*models.Relationship, error)
}

type relationshipListService interface {
	ListFor(ctx context.Context, userID int64) (*models.RelationshipLists, error)
}

type RelationshipHandler struct {
	invitations   invitationApplicationService
	relationships relationshipListService
}

func NewRelationshipHandler(
	invitations *services.InvitationService,
	relationships *services.RelationshipService,
) *RelationshipHandler {
	return &RelationshipHandler{
		invitations:   invitations,
		relationships: relationships,
	}
}

type inviteRequest struct {
	CounterpartEmail string  `json:"counterpart_email"`
	Message          *string `json:"message"`
}

type respondRequest struct {
	Decision string `json:"decision"`
}

func (h *RelationshipHandler) Invite(c *fiber.Ctx) error {
	initiatorRole, ok := initiatorRoleFromContext(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req inviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.CounterpartEmail))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email format"})
	}
	if req.Message != nil && strings.TrimSpace(*req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message must not be empty"})
	}

	relationship, err := h.invitations.Invite(
		c.Context(),
		actorID,
		initiatorRole,
		strings.ToLower(parsedEmail.Address),
		req.Message,
	)
	if err != nil {
		return mapRelationshipError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"relationship": relationship})
}

func (h *RelationshipHandler) Respond(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	relationshipID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || relationshipID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid relationship id"})
	}

	var req respondRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	decision, err := normalizeDecision(req.Decision)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "decision must be accept or decline"})
	}

	relationship, err := h.invitations.Respond(c.Context(), relationshipID, actorID, decision)
	if err != nil {
		return mapRelationshipError(c, err)
	}

	return c.JSON(fiber.Map{"relationship": relationship})
}

func (h *RelationshipHandler) Resend(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	relationshipID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || relationshipID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid relationship id"})
	}

	relationship, err := h.invitations.Resend(c.Context(), relationshipID, actorID)
	if err != nil {
		return mapRelationshipError(c, err)
	}

	return c.JSON(fiber.Map{"relationship": relationship})
}

func (h *RelationshipHandler) List(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	lists, err := h.relationships.ListFor(c.Context(), actorID)
	if err != nil {
		return mapRelationshipError(c, err)
	}

	return c.JSON(lists)
}

func parseActorID(c *fiber.Ctx) (int64, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, errors.New("missing user id")
	}
	actorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || actorID <= 0 {
		return 0, errors.New("invalid user id")
	}
	return actorID, nil
}

// initiatorRoleFromContext maps the JWT role onto the relationship seat the
// caller initiates from. The client never supplies the initiator kind.
func initiatorRoleFromContext(c *fiber.Ctx) (models.RelationshipRole, bool) {
	role, ok := c.Locals("role").(string)
	if !ok {
		return "", false
	}
	switch role {
	case "coach":
		return models.RoleCoach, true
	case "user":
		return models.RoleClient, true
	default:
		return "", false
	}
}

func normalizeDecision(decision string) (models.RelationshipStatus, error) {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "accept", "accepted", "active":
		return models.RelationshipActive, nil
	case "decline", "declined":
		return models.RelationshipDeclined, nil
	default:
		return "", services.ErrInvalidInput
	}
}

func mapRelationshipError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrRelationshipNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Relationship not found"})
	case errors.Is(err, services.ErrDuplicateRelationship):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A pending or active relationship already exists for this pair"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Relationship has already been resolved"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process relationship request"})
	}
}
