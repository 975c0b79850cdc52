package services

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/CassieCamp/arete3-backend/internal/models"
)

const (
	EventRelationshipInvited  = "relationship.invited"
	EventRelationshipAccepted = "relationship.accepted"
	EventRelationshipDeclined = "relationship.declined"
)

// Notifier delivers best-effort events. Implementations may fail; the
// invitation flow never treats that as a failure of the operation.
type Notifier interface {
	Notify(ctx context.Context, userID int64, eventKind string, payload map[string]string) error
}

type relationshipProtocol interface {
	Create(ctx context.Context, initiatorID int64, initiatorRole models.RelationshipRole, counterpartEmail string) (*models.Relationship, error)
	Respond(ctx context.Context, relationshipID, responderID int64, decision models.RelationshipStatus) (*models.Relationship, error)
	Resend(ctx context.Context, relationshipID, requesterID int64) (*models.Relationship, error)
}

// InvitationService composes the relationship protocol with notification
// dispatch. The stored relationship is the operation's source of truth;
// delivery is fire-and-forget.
type InvitationService struct {
	relationships relationshipProtocol
	notifier      Notifier
}

func NewInvitationService(
	relationships relationshipProtocol,
	notifier Notifier,
) *InvitationService {
	return &InvitationService{
		relationships: relationships,
		notifier:      notifier,
	}
}

func (s *InvitationService) Invite(
	ctx context.Context,
	initiatorID int64,
	initiatorRole models.RelationshipRole,
	counterpartEmail string,
	message *string,
) (*models.Relationship, error) {
	rel, err := s.relationships.Create(ctx, initiatorID, initiatorRole, counterpartEmail)
	if err != nil {
		return nil, err
	}

	payload := relationshipPayload(rel)
	if message != nil && strings.TrimSpace(*message) != "" {
		payload["message"] = strings.TrimSpace(*message)
	}
	s.notifyBestEffort(ctx, rel.ReceiverUserID(), EventRelationshipInvited, payload)

	return rel, nil
}

func (s *InvitationService) Resend(
	ctx context.Context,
	relationshipID int64,
	requesterID int64,
) (*models.Relationship, error) {
	rel, err := s.relationships.Resend(ctx, relationshipID, requesterID)
	if err != nil {
		return nil, err
	}

	s.notifyBestEffort(ctx, rel.ReceiverUserID(), EventRelationshipInvited, relationshipPayload(rel))

	return rel, nil
}

func (s *InvitationService) Respond(
	ctx context.Context,
	relationshipID int64,
	responderID int64,
	decision models.RelationshipStatus,
) (*models.Relationship, error) {
	rel, err := s.relationships.Respond(ctx, relationshipID, responderID, decision)
	if err != nil {
		return nil, err
	}

	eventKind := EventRelationshipDeclined
	if rel.Status == models.RelationshipActive {
		eventKind = EventRelationshipAccepted
	}
	s.notifyBestEffort(ctx, rel.InitiatorUserID(), eventKind, relationshipPayload(rel))

	return rel, nil
}

func (s *InvitationService) notifyBestEffort(
	ctx context.Context,
	userID int64,
	eventKind string,
	payload map[string]string,
) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, eventKind, payload); err != nil {
		log.Printf("notify %s to user %d: %v", eventKind, userID, err)
	}
}

func relationshipPayload(rel *models.Relationship) map[string]string {
	return map[string]string{
		"relationship_id": strconv.FormatInt(rel.ID, 10),
		"coach_id":        strconv.FormatInt(rel.CoachID, 10),
		"client_id":       strconv.FormatInt(rel.ClientID, 10),
		"status":          string(rel.Status),
		"initiator":       string(rel.Initiator),
	}
}
