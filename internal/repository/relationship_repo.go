package repository

import (
	"context"

	"github.com/CassieCamp/arete3-backend/internal/models"
)

type CreateRelationshipInput struct {
	CoachID   int64
	ClientID  int64
	Initiator models.RelationshipRole
}

type RelationshipRepository struct {
	db DBTX
}

func NewRelationshipRepository(db DBTX) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// Create inserts a pending record. A live record for the same pair trips the
// partial unique index and surfaces as a pgconn unique violation.
func (r *RelationshipRepository) Create(
	ctx context.Context,
	input CreateRelationshipInput,
) (*models.Relationship, error) {
	query := `
		INSERT INTO relationships (coach_id, client_id, status, initiator)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, coach_id, client_id, status, initiator, created_at, updated_at
	`

	var rel models.Relationship
	err := r.db.QueryRow(ctx, query, input.CoachID, input.ClientID, input.Initiator).Scan(
		&rel.ID,
		&rel.CoachID,
		&rel.ClientID,
		&rel.Status,
		&rel.Initiator,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *RelationshipRepository) GetByID(
	ctx context.Context,
	relationshipID int64,
) (*models.Relationship, error) {
	query := `
		SELECT id, coach_id, client_id, status, initiator, created_at, updated_at
		FROM relationships
		WHERE id = $1
	`
	var rel models.Relationship
	err := r.db.QueryRow(ctx, query, relationshipID).Scan(
		&rel.ID,
		&rel.CoachID,
		&rel.ClientID,
		&rel.Status,
		&rel.Initiator,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// GetLiveByPair returns the pending or active record for a coach/client pair.
// At most one such record exists at a time.
func (r *RelationshipRepository) GetLiveByPair(
	ctx context.Context,
	coachID int64,
	clientID int64,
) (*models.Relationship, error) {
	query := `
		SELECT id, coach_id, client_id, status, initiator, created_at, updated_at
		FROM relationships
		WHERE coach_id = $1 AND client_id = $2 AND status IN ('pending', 'active')
	`
	var rel models.Relationship
	err := r.db.QueryRow(ctx, query, coachID, clientID).Scan(
		&rel.ID,
		&rel.CoachID,
		&rel.ClientID,
		&rel.Status,
		&rel.Initiator,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// UpdateStatusIfPending resolves the record with a compare-and-swap: the
// write lands only if the stored status is still pending. pgx.ErrNoRows
// means a concurrent responder won the race.
func (r *RelationshipRepository) UpdateStatusIfPending(
	ctx context.Context,
	relationshipID int64,
	nextStatus models.RelationshipStatus,
) (*models.Relationship, error) {
	query := `
		UPDATE relationships
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, coach_id, client_id, status, initiator, created_at, updated_at
	`
	var rel models.Relationship
	err := r.db.QueryRow(ctx, query, relationshipID, nextStatus).Scan(
		&rel.ID,
		&rel.CoachID,
		&rel.ClientID,
		&rel.Status,
		&rel.Initiator,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// TouchPending refreshes updated_at for an idempotent resend, guarded the
// same way as status writes so a resolved record is never touched.
func (r *RelationshipRepository) TouchPending(
	ctx context.Context,
	relationshipID int64,
) (*models.Relationship, error) {
	query := `
		UPDATE relationships
		SET updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, coach_id, client_id, status, initiator, created_at, updated_at
	`
	var rel models.Relationship
	err := r.db.QueryRow(ctx, query, relationshipID).Scan(
		&rel.ID,
		&rel.CoachID,
		&rel.ClientID,
		&rel.Status,
		&rel.Initiator,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *RelationshipRepository) ListForUser(
	ctx context.Context,
	userID int64,
) ([]models.Relationship, error) {
	query := `
		SELECT id, coach_id, client_id, status, initiator, created_at, updated_at
		FROM relationships
		WHERE (coach_id = $1 OR client_id = $1) AND status <> 'declined'
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	relationships := make([]models.Relationship, 0)
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(
			&rel.ID,
			&rel.CoachID,
			&rel.ClientID,
			&rel.Status,
			&rel.Initiator,
			&rel.CreatedAt,
			&rel.UpdatedAt,
		); err != nil {
			return nil, err
		}
		relationships = append(relationships, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return relationships, nil
}

func (r *RelationshipRepository) HasActiveCoach(
	ctx context.Context,
	clientID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM relationships
			WHERE client_id = $1 AND status = 'active'
		)
	`
	var hasCoach bool
	if err := r.db.QueryRow(ctx, query, clientID).Scan(&hasCoach); err != nil {
		return false, err
	}
	return hasCoach, nil
}

// LatestPendingClientRequest returns the newest pending record the user
// initiated from the client seat, or pgx.ErrNoRows.
func (r *RelationshipRepository) LatestPendingClientRequest(
	ctx context.Context,
	clientID int64,
) (*models.Relationship, error) {
	query := `
		SELECT id, coach_id, client_id, status, initiator, created_at, updated_at
		FROM relationships
		WHERE client_id = $1 AND status = 'pending' AND initiator = 'client'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var rel models.Relationship
	err := r.db.QueryRow(ctx, query, clientID).Scan(
		&rel.ID,
		&rel.CoachID,
		&rel.ClientID,
		&rel.Status,
		&rel.Initiator,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}
