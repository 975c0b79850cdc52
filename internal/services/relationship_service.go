package services

import (
	"context"
	"errors"
	"strings"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/CassieCamp/arete3-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUserNotFound           = errors.New("user not found")
	ErrRelationshipNotFound   = errors.New("relationship not found")
	ErrDuplicateRelationship  = errors.New("relationship already exists")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

type RelationshipStore interface {
	Create(ctx context.Context, input repository.CreateRelationshipInput) (*models.Relationship, error)
	GetByID(ctx context.Context, relationshipID int64) (*models.Relationship, error)
	GetLiveByPair(ctx context.Context, coachID, clientID int64) (*models.Relationship, error)
	UpdateStatusIfPending(ctx context.Context, relationshipID int64, nextStatus models.RelationshipStatus) (*models.Relationship, error)
	TouchPending(ctx context.Context, relationshipID int64) (*models.Relationship, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Relationship, error)
}

type userReader interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// RelationshipService owns the creation/response protocol for coaching
// relationships and its pair invariant.
type RelationshipService struct {
	relationshipRepo RelationshipStore
	userRepo         userReader
}

func NewRelationshipService(
	relationshipRepo RelationshipStore,
	userRepo userReader,
) *RelationshipService {
	return &RelationshipService{
		relationshipRepo: relationshipRepo,
		userRepo:         userRepo,
	}
}

// Create starts a pending relationship on behalf of the initiator, resolving
// the counterpart by email. Re-inviting a pair the initiator already has a
// pending record for is an idempotent resend: the record's timestamp is
// refreshed and no new row is written.
func (s *RelationshipService) Create(
	ctx context.Context,
	initiatorID int64,
	initiatorRole models.RelationshipRole,
	counterpartEmail string,
) (*models.Relationship, error) {
	if initiatorID <= 0 {
		return nil, ErrInvalidInput
	}
	if initiatorRole != models.RoleCoach && initiatorRole != models.RoleClient {
		return nil, ErrInvalidInput
	}
	email := strings.ToLower(strings.TrimSpace(counterpartEmail))
	if email == "" {
		return nil, ErrInvalidInput
	}

	counterpart, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if counterpart.ID == initiatorID {
		return nil, ErrInvalidInput
	}

	var coachID, clientID int64
	if initiatorRole == models.RoleCoach {
		if counterpart.Role != "user" {
			return nil, ErrInvalidInput
		}
		coachID, clientID = initiatorID, counterpart.ID
	} else {
		if counterpart.Role != "coach" {
			return nil, ErrInvalidInput
		}
		coachID, clientID = counterpart.ID, initiatorID
	}

	existing, err := s.relationshipRepo.GetLiveByPair(ctx, coachID, clientID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.RelationshipPending && existing.Initiator == initiatorRole {
			refreshed, err := s.relationshipRepo.TouchPending(ctx, existing.ID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					// Resolved between the read and the touch.
					return nil, ErrDuplicateRelationship
				}
				return nil, err
			}
			return refreshed, nil
		}
		return nil, ErrDuplicateRelationship
	}

	created, err := s.relationshipRepo.Create(ctx, repository.CreateRelationshipInput{
		CoachID:   coachID,
		ClientID:  clientID,
		Initiator: initiatorRole,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost a creation race against a concurrent invite for the pair.
			return nil, ErrDuplicateRelationship
		}
		return nil, err
	}
	return created, nil
}

// Respond resolves a pending relationship. Only the non-initiating party may
// respond; the status write is a compare-and-swap, so of two concurrent
// responders exactly one wins and the other sees ErrInvalidStateTransition.
func (s *RelationshipService) Respond(
	ctx context.Context,
	relationshipID int64,
	responderID int64,
	decision models.RelationshipStatus,
) (*models.Relationship, error) {
	if decision != models.RelationshipActive && decision != models.RelationshipDeclined {
		return nil, ErrInvalidInput
	}

	rel, err := s.relationshipRepo.GetByID(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRelationshipNotFound
		}
		return nil, err
	}

	if !models.CanTransition(rel.Status, decision) {
		return nil, ErrInvalidStateTransition
	}
	if rel.ReceiverUserID() != responderID {
		return nil, ErrForbidden
	}

	updated, err := s.relationshipRepo.UpdateStatusIfPending(ctx, relationshipID, decision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return updated, nil
}

// Resend refreshes a still-pending record so the counterpart can be notified
// again. Only the initiator may resend.
func (s *RelationshipService) Resend(
	ctx context.Context,
	relationshipID int64,
	requesterID int64,
) (*models.Relationship, error) {
	rel, err := s.relationshipRepo.GetByID(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRelationshipNotFound
		}
		return nil, err
	}

	if rel.InitiatorUserID() != requesterID {
		return nil, ErrForbidden
	}
	if rel.Status != models.RelationshipPending {
		return nil, ErrInvalidStateTransition
	}

	refreshed, err := s.relationshipRepo.TouchPending(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return refreshed, nil
}

// ListFor partitions the user's non-declined records. Direction is
// initiator-relative: a pending record is outgoing when the viewer sits in
// the seat that created it, whichever seat that is.
func (s *RelationshipService) ListFor(
	ctx context.Context,
	userID int64,
) (*models.RelationshipLists, error) {
	relationships, err := s.relationshipRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	lists := &models.RelationshipLists{
		PendingIncoming: make([]models.Relationship, 0),
		PendingOutgoing: make([]models.Relationship, 0),
		Active:          make([]models.Relationship, 0),
	}
	for _, rel := range relationships {
		switch rel.Status {
		case models.RelationshipActive:
			lists.Active = append(lists.Active, rel)
		case models.RelationshipPending:
			if rel.InitiatorUserID() == userID {
				lists.PendingOutgoing = append(lists.PendingOutgoing, rel)
			} else {
				lists.PendingIncoming = append(lists.PendingIncoming, rel)
			}
		}
	}
	return lists, nil
}
