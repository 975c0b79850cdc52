package services

import (
	"context"
	"testing"
	"time"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/jackc/pgx/v5"
)

type stubRelationshipReader struct {
	hasCoach      bool
	hasCoachErr   error
	latestRequest *models.Relationship
	latestErr     error
}

func (s *stubRelationshipReader) HasActiveCoach(_ context.Context, _ int64) (bool, error) {
	return s.hasCoach, s.hasCoachErr
}

func (s *stubRelationshipReader) LatestPendingClientRequest(_ context.Context, _ int64) (*models.Relationship, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	if s.latestRequest == nil {
		return nil, pgx.ErrNoRows
	}
	return s.latestRequest, nil
}

type stubUsageReader struct {
	count int
	err   error
}

func (s *stubUsageReader) CountByUserID(_ context.Context, _ int64) (int, error) {
	return s.count, s.err
}

func TestComputeQuotaExhaustedWithoutCoach(t *testing.T) {
	service := NewEntitlementService(
		&stubRelationshipReader{},
		&stubUsageReader{count: 3},
		3,
	)

	snapshot, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if snapshot.EntriesRemaining != 0 {
		t.Fatalf("expected 0 entries remaining, got %d", snapshot.EntriesRemaining)
	}
	if snapshot.CanCreateEntries {
		t.Fatalf("expected can_create_entries false")
	}
	if snapshot.CanAccessInsights {
		t.Fatalf("expected can_access_insights false")
	}
}

func TestComputeRemainingNeverNegative(t *testing.T) {
	service := NewEntitlementService(
		&stubRelationshipReader{},
		&stubUsageReader{count: 10},
		3,
	)

	snapshot, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if snapshot.EntriesRemaining != 0 {
		t.Fatalf("expected 0 entries remaining, got %d", snapshot.EntriesRemaining)
	}
	if snapshot.EntriesCount != 10 {
		t.Fatalf("expected entries_count 10, got %d", snapshot.EntriesCount)
	}
}

func TestComputeFreeTierWithRemainingQuota(t *testing.T) {
	service := NewEntitlementService(
		&stubRelationshipReader{},
		&stubUsageReader{count: 1},
		3,
	)

	snapshot, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if snapshot.EntriesRemaining != 2 {
		t.Fatalf("expected 2 entries remaining, got %d", snapshot.EntriesRemaining)
	}
	if !snapshot.CanCreateEntries {
		t.Fatalf("expected can_create_entries true")
	}
	if snapshot.CanAccessInsights {
		t.Fatalf("expected can_access_insights false without a coach")
	}
}

func TestComputeActiveCoachUnlocksEverything(t *testing.T) {
	service := NewEntitlementService(
		&stubRelationshipReader{hasCoach: true},
		&stubUsageReader{count: 50},
		3,
	)

	snapshot, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if !snapshot.HasCoach {
		t.Fatalf("expected has_coach true")
	}
	if !snapshot.CanCreateEntries {
		t.Fatalf("expected can_create_entries true with a coach")
	}
	if !snapshot.CanAccessInsights {
		t.Fatalf("expected can_access_insights true with a coach")
	}
	if snapshot.EntriesRemaining != 0 {
		t.Fatalf("expected quota still clamped at 0, got %d", snapshot.EntriesRemaining)
	}
}

func TestComputeReportsPendingCoachRequest(t *testing.T) {
	requestedAt := time.Date(2025, 5, 10, 8, 30, 0, 0, time.UTC)
	service := NewEntitlementService(
		&stubRelationshipReader{latestRequest: &models.Relationship{
			ID:        7,
			CoachID:   10,
			ClientID:  20,
			Status:    models.RelationshipPending,
			Initiator: models.RoleClient,
			CreatedAt: requestedAt,
		}},
		&stubUsageReader{count: 0},
		3,
	)

	snapshot, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if !snapshot.CoachRequested {
		t.Fatalf("expected coach_requested true")
	}
	if snapshot.CoachRequestDate == nil || !snapshot.CoachRequestDate.Equal(requestedAt) {
		t.Fatalf("expected request date %v, got %v", requestedAt, snapshot.CoachRequestDate)
	}
}

func TestComputeWithoutRequestLeavesDateNil(t *testing.T) {
	service := NewEntitlementService(
		&stubRelationshipReader{},
		&stubUsageReader{count: 0},
		3,
	)

	snapshot, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if snapshot.CoachRequested {
		t.Fatalf("expected coach_requested false")
	}
	if snapshot.CoachRequestDate != nil {
		t.Fatalf("expected nil request date, got %v", snapshot.CoachRequestDate)
	}
}

func TestComputeIsDeterministicForSameInputs(t *testing.T) {
	service := NewEntitlementService(
		&stubRelationshipReader{hasCoach: true},
		&stubUsageReader{count: 2},
		3,
	)

	first, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	second, err := service.Compute(context.Background(), 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if *first != *second {
		t.Fatalf("expected identical snapshots, got %+v and %+v", first, second)
	}
}
