package repository

import (
	"context"

	"github.com/CassieCamp/arete3-backend/internal/models"
)

type CreateEntryInput struct {
	UserID  int64
	Title   *string
	Content string
}

type EntryRepository struct {
	db DBTX
}

func NewEntryRepository(db DBTX) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Create(
	ctx context.Context,
	input CreateEntryInput,
) (*models.Entry, error) {
	query := `
		INSERT INTO entries (user_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, title, content, created_at
	`

	var entry models.Entry
	err := r.db.QueryRow(ctx, query, input.UserID, input.Title, input.Content).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Title,
		&entry.Content,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountByUserID is the usage read the entitlement engine consumes. The count
// only grows; entries have no delete surface.
func (r *EntryRepository) CountByUserID(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM entries WHERE user_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EntryRepository) ListByUserID(
	ctx context.Context,
	userID int64,
	limit int,
	offset int,
) ([]models.Entry, error) {
	query := `
		SELECT id, user_id, title, content, created_at
		FROM entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		var entry models.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Title,
			&entry.Content,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
