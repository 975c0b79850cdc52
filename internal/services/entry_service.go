package services

import (
	"context"
	"errors"
	"strings"

	"github.com/CassieCamp/arete3-backend/internal/models"
	"github.com/CassieCamp/arete3-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEntryLimitReached = errors.New("entry limit reached")

type CreateEntryInput struct {
	Title   *string
	Content string
}

// EntryService owns content-entry creation. The freemium quota check and the
// insert run as one step inside a transaction holding a per-user advisory
// lock, so two concurrent creates cannot both pass a stale quota check.
type EntryService struct {
	db               *pgxpool.Pool
	entryRepo        *repository.EntryRepository
	relationshipRepo relationshipReader
	maxFreeEntries   int
}

func NewEntryService(
	db *pgxpool.Pool,
	entryRepo *repository.EntryRepository,
	relationshipRepo relationshipReader,
	maxFreeEntries int,
) *EntryService {
	return &EntryService{
		db:               db,
		entryRepo:        entryRepo,
		relationshipRepo: relationshipRepo,
		maxFreeEntries:   maxFreeEntries,
	}
}

func (s *EntryService) Create(
	ctx context.Context,
	userID int64,
	input CreateEntryInput,
) (*models.Entry, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrInvalidInput
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txEntryRepo := repository.NewEntryRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", userID); err != nil {
		return nil, err
	}

	hasCoach, err := s.relationshipRepo.HasActiveCoach(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !hasCoach {
		count, err := txEntryRepo.CountByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if count >= s.maxFreeEntries {
			return nil, ErrEntryLimitReached
		}
	}

	entry, err := txEntryRepo.Create(ctx, repository.CreateEntryInput{
		UserID:  userID,
		Title:   input.Title,
		Content: input.Content,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *EntryService) List(
	ctx context.Context,
	userID int64,
	limit int,
	offset int,
) ([]models.Entry, int, error) {
	entries, err := s.entryRepo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.entryRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
