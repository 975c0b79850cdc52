package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/CassieCamp/arete3-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRelationshipStore struct {
	createResult *models.Relationship
	createErr    error
	getResult    *models.Relationship
	getErr       error
	liveResult   *models.Relationship
	liveErr      error
	updateResult *models.Relationship
	updateErr    error
	touchResult  *models.Relationship
	touchErr     error
	listResult   []models.Relationship
	listErr      error

	lastCreate     repository.CreateRelationshipInput
	lastUpdateNext models.RelationshipStatus
	createCalls    int
	touchCalls     int
	updateCalls    int
}

func (s *stubRelationshipStore) Create(_ context.Context, input repository.CreateRelationshipInput) (*models.Relationship, error) {
	s.createCalls++
	s.lastCreate = input
	return s.createResult, s.createErr
}

func (s *stubRelationshipStore) GetByID(_ context.Context, _ int64) (*models.Relationship, error) {
	return s.getResult, s.getErr
}

func (s *stubRelationshipStore) GetLiveByPair(_ context.Context, _, _ int64) (*models.Relationship, error) {
	return s.liveResult, s.liveErr
}

func (s *stubRelationshipStore) UpdateStatusIfPending(_ context.Context, _ int64, nextStatus models.RelationshipStatus) (*models.Relationship, error) {
	s.updateCalls++
	s.lastUpdateNext = nextStatus
	return s.updateResult, s.updateErr
}

func (s *stubRelationshipStore) TouchPending(_ context.Context, _ int64) (*models.Relationship, error) {
	s.touchCalls++
	return s.touchResult, s.touchErr
}

func (s *stubRelationshipStore) ListForUser(_ context.Context, _ int64) ([]models.Relationship, error) {
	return s.listResult, s.listErr
}

type stubUserReader struct {
	usersByEmail map[string]*models.User
	usersByID    map[int64]*models.User
}

func (s *stubUserReader) GetByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.usersByEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (s *stubUserReader) GetByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := s.usersByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func buildRelationship(
	id, coachID, clientID int64,
	status models.RelationshipStatus,
	initiator models.RelationshipRole,
) *models.Relationship {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.Relationship{
		ID:        id,
		CoachID:   coachID,
		ClientID:  clientID,
		Status:    status,
		Initiator: initiator,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func clientUser(id int64, email string) *models.User {
	return &models.User{ID: id, Email: email, Role: "user"}
}

func coachUser(id int64, email string) *models.User {
	return &models.User{ID: id, Email: email, Role: "coach"}
}

func TestCreateCoachInvitesClient(t *testing.T) {
	store := &stubRelationshipStore{
		liveErr:      pgx.ErrNoRows,
		createResult: buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach),
	}
	users := &stubUserReader{usersByEmail: map[string]*models.User{
		"client@example.com": clientUser(20, "client@example.com"),
	}}
	service := NewRelationshipService(store, users)

	rel, err := service.Create(context.Background(), 10, models.RoleCoach, "Client@Example.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rel.Status != models.RelationshipPending {
		t.Fatalf("expected pending status, got %q", rel.Status)
	}
	if store.lastCreate.CoachID != 10 || store.lastCreate.ClientID != 20 {
		t.Fatalf("expected pair (10, 20), got (%d, %d)", store.lastCreate.CoachID, store.lastCreate.ClientID)
	}
	if store.lastCreate.Initiator != models.RoleCoach {
		t.Fatalf("expected coach initiator, got %q", store.lastCreate.Initiator)
	}
}

func TestCreateClientRequestsCoach(t *testing.T) {
	store := &stubRelationshipStore{
		liveErr:      pgx.ErrNoRows,
		createResult: buildRelationship(2, 30, 40, models.RelationshipPending, models.RoleClient),
	}
	users := &stubUserReader{usersByEmail: map[string]*models.User{
		"coach@example.com": coachUser(30, "coach@example.com"),
	}}
	service := NewRelationshipService(store, users)

	rel, err := service.Create(context.Background(), 40, models.RoleClient, "coach@example.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rel.Initiator != models.RoleClient {
		t.Fatalf("expected client initiator, got %q", rel.Initiator)
	}
	if store.lastCreate.CoachID != 30 || store.lastCreate.ClientID != 40 {
		t.Fatalf("expected pair (30, 40), got (%d, %d)", store.lastCreate.CoachID, store.lastCreate.ClientID)
	}
}

func TestCreateUnknownCounterpartReturnsUserNotFound(t *testing.T) {
	service := NewRelationshipService(
		&stubRelationshipStore{liveErr: pgx.ErrNoRows},
		&stubUserReader{usersByEmail: map[string]*models.User{}},
	)

	_, err := service.Create(context.Background(), 10, models.RoleCoach, "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateRejectsSelfInvite(t *testing.T) {
	service := NewRelationshipService(
		&stubRelationshipStore{liveErr: pgx.ErrNoRows},
		&stubUserReader{usersByEmail: map[string]*models.User{
			"coach@example.com": coachUser(10, "coach@example.com"),
		}},
	)

	_, err := service.Create(context.Background(), 10, models.RoleCoach, "coach@example.com")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRejectsMismatchedCounterpartRole(t *testing.T) {
	service := NewRelationshipService(
		&stubRelationshipStore{liveErr: pgx.ErrNoRows},
		&stubUserReader{usersByEmail: map[string]*models.User{
			"other@example.com": coachUser(20, "other@example.com"),
		}},
	)

	// A coach cannot invite another coach account as a client.
	_, err := service.Create(context.Background(), 10, models.RoleCoach, "other@example.com")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateWithActivePairReturnsDuplicate(t *testing.T) {
	store := &stubRelationshipStore{
		liveResult: buildRelationship(1, 10, 20, models.RelationshipActive, models.RoleCoach),
	}
	service := NewRelationshipService(store, &stubUserReader{usersByEmail: map[string]*models.User{
		"client@example.com": clientUser(20, "client@example.com"),
	}})

	_, err := service.Create(context.Background(), 10, models.RoleCoach, "client@example.com")
	if !errors.Is(err, ErrDuplicateRelationship) {
		t.Fatalf("expected ErrDuplicateRelationship, got %v", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("expected no insert, got %d", store.createCalls)
	}
}

func TestCreateSameInitiatorPendingIsIdempotentResend(t *testing.T) {
	existing := buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach)
	refreshed := *existing
	refreshed.UpdatedAt = existing.UpdatedAt.Add(time.Hour)
	store := &stubRelationshipStore{
		liveResult:  existing,
		touchResult: &refreshed,
	}
	service := NewRelationshipService(store, &stubUserReader{usersByEmail: map[string]*models.User{
		"client@example.com": clientUser(20, "client@example.com"),
	}})

	rel, err := service.Create(context.Background(), 10, models.RoleCoach, "client@example.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if store.createCalls != 0 {
		t.Fatalf("expected no new record, got %d inserts", store.createCalls)
	}
	if store.touchCalls != 1 {
		t.Fatalf("expected one timestamp refresh, got %d", store.touchCalls)
	}
	if !rel.UpdatedAt.After(existing.CreatedAt) {
		t.Fatalf("expected refreshed updated_at, got %v", rel.UpdatedAt)
	}
}

func TestCreatePendingByOtherPartyReturnsDuplicate(t *testing.T) {
	store := &stubRelationshipStore{
		liveResult: buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleClient),
	}
	service := NewRelationshipService(store, &stubUserReader{usersByEmail: map[string]*models.User{
		"client@example.com": clientUser(20, "client@example.com"),
	}})

	_, err := service.Create(context.Background(), 10, models.RoleCoach, "client@example.com")
	if !errors.Is(err, ErrDuplicateRelationship) {
		t.Fatalf("expected ErrDuplicateRelationship, got %v", err)
	}
}

func TestCreateLostInsertRaceMapsToDuplicate(t *testing.T) {
	store := &stubRelationshipStore{
		liveErr:   pgx.ErrNoRows,
		createErr: &pgconn.PgError{Code: "23505"},
	}
	service := NewRelationshipService(store, &stubUserReader{usersByEmail: map[string]*models.User{
		"client@example.com": clientUser(20, "client@example.com"),
	}})

	_, err := service.Create(context.Background(), 10, models.RoleCoach, "client@example.com")
	if !errors.Is(err, ErrDuplicateRelationship) {
		t.Fatalf("expected ErrDuplicateRelationship, got %v", err)
	}
}

func TestRespondRejectsUnknownDecision(t *testing.T) {
	service := NewRelationshipService(&stubRelationshipStore{}, &stubUserReader{})

	_, err := service.Respond(context.Background(), 1, 20, models.RelationshipPending)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRespondMissingRecordReturnsNotFound(t *testing.T) {
	service := NewRelationshipService(&stubRelationshipStore{getErr: pgx.ErrNoRows}, &stubUserReader{})

	_, err := service.Respond(context.Background(), 1, 20, models.RelationshipActive)
	if !errors.Is(err, ErrRelationshipNotFound) {
		t.Fatalf("expected ErrRelationshipNotFound, got %v", err)
	}
}

func TestRespondToResolvedRecordReturnsInvalidTransition(t *testing.T) {
	store := &stubRelationshipStore{
		getResult: buildRelationship(1, 10, 20, models.RelationshipActive, models.RoleCoach),
	}
	service := NewRelationshipService(store, &stubUserReader{})

	_, err := service.Respond(context.Background(), 1, 20, models.RelationshipDeclined)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if store.updateCalls != 0 {
		t.Fatalf("expected no status write, got %d", store.updateCalls)
	}
}

func TestRespondByInitiatorReturnsForbidden(t *testing.T) {
	service := NewRelationshipService(&stubRelationshipStore{
		getResult: buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach),
	}, &stubUserReader{})

	_, err := service.Respond(context.Background(), 1, 10, models.RelationshipActive)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRespondByStrangerReturnsForbidden(t *testing.T) {
	service := NewRelationshipService(&stubRelationshipStore{
		getResult: buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach),
	}, &stubUserReader{})

	_, err := service.Respond(context.Background(), 1, 99, models.RelationshipActive)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRespondAcceptByReceiverActivates(t *testing.T) {
	store := &stubRelationshipStore{
		getResult:    buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach),
		updateResult: buildRelationship(1, 10, 20, models.RelationshipActive, models.RoleCoach),
	}
	service := NewRelationshipService(store, &stubUserReader{})

	rel, err := service.Respond(context.Background(), 1, 20, models.RelationshipActive)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if rel.Status != models.RelationshipActive {
		t.Fatalf("expected active status, got %q", rel.Status)
	}
	if store.lastUpdateNext != models.RelationshipActive {
		t.Fatalf("expected CAS to active, got %q", store.lastUpdateNext)
	}
}

func TestRespondDeclineOnClientInitiatedRecord(t *testing.T) {
	// Client 20 requested coach 10, so the coach holds response authority.
	store := &stubRelationshipStore{
		getResult:    buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleClient),
		updateResult: buildRelationship(1, 10, 20, models.RelationshipDeclined, models.RoleClient),
	}
	service := NewRelationshipService(store, &stubUserReader{})

	rel, err := service.Respond(context.Background(), 1, 10, models.RelationshipDeclined)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if rel.Status != models.RelationshipDeclined {
		t.Fatalf("expected declined status, got %q", rel.Status)
	}
}

func TestRespondLostCASRaceReturnsInvalidTransition(t *testing.T) {
	// The record reads pending but a concurrent responder resolves it before
	// the compare-and-swap lands.
	store := &stubRelationshipStore{
		getResult: buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach),
		updateErr: pgx.ErrNoRows,
	}
	service := NewRelationshipService(store, &stubUserReader{})

	_, err := service.Respond(context.Background(), 1, 20, models.RelationshipDeclined)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestResendByReceiverReturnsForbidden(t *testing.T) {
	service := NewRelationshipService(&stubRelationshipStore{
		getResult: buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach),
	}, &stubUserReader{})

	_, err := service.Resend(context.Background(), 1, 20)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResendResolvedRecordReturnsInvalidTransition(t *testing.T) {
	service := NewRelationshipService(&stubRelationshipStore{
		getResult: buildRelationship(1, 10, 20, models.RelationshipDeclined, models.RoleCoach),
	}, &stubUserReader{})

	_, err := service.Resend(context.Background(), 1, 10)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestResendByInitiatorRefreshesRecord(t *testing.T) {
	store := &stubRelationshipStore{
		getResult:   buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleClient),
		touchResult: buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleClient),
	}
	service := NewRelationshipService(store, &stubUserReader{})

	// Client 20 initiated, so the client resends.
	if _, err := service.Resend(context.Background(), 1, 20); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if store.touchCalls != 1 {
		t.Fatalf("expected one refresh, got %d", store.touchCalls)
	}
}

func TestListForPartitionsByInitiatorNotSeat(t *testing.T) {
	store := &stubRelationshipStore{
		listResult: []models.Relationship{
			// Coach 10 invited client 20: outgoing for the coach.
			*buildRelationship(1, 10, 20, models.RelationshipPending, models.RoleCoach),
			// Client 30 requested coach 10: incoming for the coach.
			*buildRelationship(2, 10, 30, models.RelationshipPending, models.RoleClient),
			*buildRelationship(3, 10, 40, models.RelationshipActive, models.RoleCoach),
		},
	}
	service := NewRelationshipService(store, &stubUserReader{})

	lists, err := service.ListFor(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListFor: %v", err)
	}

	if len(lists.PendingOutgoing) != 1 || lists.PendingOutgoing[0].ID != 1 {
		t.Fatalf("expected relationship 1 outgoing, got %+v", lists.PendingOutgoing)
	}
	if len(lists.PendingIncoming) != 1 || lists.PendingIncoming[0].ID != 2 {
		t.Fatalf("expected relationship 2 incoming, got %+v", lists.PendingIncoming)
	}
	if len(lists.Active) != 1 || lists.Active[0].ID != 3 {
		t.Fatalf("expected relationship 3 active, got %+v", lists.Active)
	}
}

func TestListForClientSideDirections(t *testing.T) {
	store := &stubRelationshipStore{
		listResult: []models.Relationship{
			// Client 20 requested coach 50: outgoing for the client.
			*buildRelationship(4, 50, 20, models.RelationshipPending, models.RoleClient),
			// Coach 60 invited client 20: incoming for the client.
			*buildRelationship(5, 60, 20, models.RelationshipPending, models.RoleCoach),
		},
	}
	service := NewRelationshipService(store, &stubUserReader{})

	lists, err := service.ListFor(context.Background(), 20)
	if err != nil {
		t.Fatalf("ListFor: %v", err)
	}

	if len(lists.PendingOutgoing) != 1 || lists.PendingOutgoing[0].ID != 4 {
		t.Fatalf("expected relationship 4 outgoing, got %+v", lists.PendingOutgoing)
	}
	if len(lists.PendingIncoming) != 1 || lists.PendingIncoming[0].ID != 5 {
		t.Fatalf("expected relationship 5 incoming, got %+v", lists.PendingIncoming)
	}
}
