package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// RawRepository manages upstream record snapshots. Rows are keyed by
// (specific_id, source); re-harvesting the same specific_id updates the
// existing row in place, so upserts are idempotent across runs.
type RawRepository interface {
	// UpsertArticle inserts or updates a raw article snapshot.
	// Returns the stored record with its ID and timestamps populated.
	UpsertArticle(ctx context.Context, raw *domain.RawArticle) (*domain.RawArticle, error)

	// UpsertInstitution inserts or updates a raw institution snapshot.
	UpsertInstitution(ctx context.Context, raw *domain.RawInstitution) (*domain.RawInstitution, error)

	// UpsertJournal inserts or updates a raw journal snapshot.
	UpsertJournal(ctx context.Context, raw *domain.RawJournal) (*domain.RawJournal, error)

	// GetArticle retrieves a raw article by its source-local identifier.
	// Returns domain.ErrNotFound if no matching snapshot exists.
	GetArticle(ctx context.Context, specificID string, source domain.SourceName) (*domain.RawArticle, error)

	// GetArticleByID retrieves a raw article by its UUID.
	GetArticleByID(ctx context.Context, id uuid.UUID) (*domain.RawArticle, error)

	// ListArticles retrieves raw articles matching the filter criteria,
	// ordered by creation time, with the total count for pagination.
	ListArticles(ctx context.Context, filter RawArticleFilter) ([]*domain.RawArticle, int64, error)

	// ListInstitutions retrieves raw institutions for a source.
	ListInstitutions(ctx context.Context, source domain.SourceName, limit, offset int) ([]*domain.RawInstitution, int64, error)

	// ListJournals retrieves raw journals for a source.
	ListJournals(ctx context.Context, source domain.SourceName, limit, offset int) ([]*domain.RawJournal, int64, error)
}

// RawArticleFilter specifies criteria for listing raw article snapshots.
type RawArticleFilter struct {
	// Source filters by upstream provider (optional).
	Source *domain.SourceName

	// Year filters by the denormalized publication year (optional).
	Year *int

	// UpdatedAfter filters to snapshots touched after this timestamp,
	// used to promote only records changed since the last pass (optional).
	UpdatedAfter *time.Time

	// HasDOI filters to snapshots with or without a DOI (optional).
	HasDOI *bool

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *RawArticleFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
