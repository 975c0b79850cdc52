package services

import (
	"context"
	"errors"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/jackc/pgx/v5"
)

type relationshipReader interface {
	HasActiveCoach(ctx context.Context, clientID int64) (bool, error)
	LatestPendingClientRequest(ctx context.Context, clientID int64) (*models.Relationship, error)
}

type usageReader interface {
	CountByUserID(ctx context.Context, userID int64) (int, error)
}

// EntitlementService derives a capability snapshot from relationship state
// and usage counts. It performs no writes, so a snapshot is never staler
// than the reads it is built from.
type EntitlementService struct {
	relationshipRepo relationshipReader
	entryRepo        usageReader
	maxFreeEntries   int
}

func NewEntitlementService(
	relationshipRepo relationshipReader,
	entryRepo usageReader,
	maxFreeEntries int,
) *EntitlementService {
	return &EntitlementService{
		relationshipRepo: relationshipRepo,
		entryRepo:        entryRepo,
		maxFreeEntries:   maxFreeEntries,
	}
}

func (s *EntitlementService) Compute(
	ctx context.Context,
	userID int64,
) (*models.EntitlementSnapshot, error) {
	hasCoach, err := s.relationshipRepo.HasActiveCoach(ctx, userID)
	if err != nil {
		return nil, err
	}

	entriesCount, err := s.entryRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.EntitlementSnapshot{
		HasCoach:          hasCoach,
		EntriesCount:      entriesCount,
		MaxFreeEntries:    s.maxFreeEntries,
		EntriesRemaining:  remainingEntries(s.maxFreeEntries, entriesCount),
		CanAccessInsights: hasCoach,
	}
	snapshot.CanCreateEntries = hasCoach || snapshot.EntriesRemaining > 0

	request, err := s.relationshipRepo.LatestPendingClientRequest(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if request != nil {
		snapshot.CoachRequested = true
		requestedAt := request.CreatedAt
		snapshot.CoachRequestDate = &requestedAt
	}

	return snapshot, nil
}

func remainingEntries(maxFree, used int) int {
	remaining := maxFree - used
	if remaining < 0 {
		return 0
	}
	return remaining
}
