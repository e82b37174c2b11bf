package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// ArticleRepository manages canonical bibliographic records. The identity
// key is doi when present, falling back to the title.
type ArticleRepository interface {
	// CreateOrUpdate matches the article by doi (or title when doi is
	// empty) and inserts or updates it following the create-or-update
	// contract. Contributor, source and concept sets are additive on
	// update; scalar fields take the incoming non-empty values.
	// Returns domain.ErrAmbiguousIdentity when the key matches several rows
	// and domain.ErrInvalidArgument when both doi and title are empty.
	CreateOrUpdate(ctx context.Context, article *domain.Article) (*domain.Article, domain.UpsertOutcome, error)

	// GetByID retrieves an article with its M:N link sets populated.
	// Returns domain.ErrNotFound if no matching article exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error)

	// GetByDOI retrieves an article by DOI.
	GetByDOI(ctx context.Context, doi string) (*domain.Article, error)

	// GetByTitle retrieves an article by exact title, the identity
	// fallback for DOI-less works.
	// Returns domain.ErrAmbiguousIdentity when several rows share the
	// title.
	GetByTitle(ctx context.Context, title string) (*domain.Article, error)

	// List retrieves articles matching the filter criteria with the total
	// count for pagination.
	List(ctx context.Context, filter ArticleFilter) ([]*domain.Article, int64, error)
}

// ArticleFilter specifies criteria for listing articles.
type ArticleFilter struct {
	// Year filters by publication year (optional).
	Year *int

	// YearFrom and YearTo bound the publication year inclusively,
	// for evolution windows (optional).
	YearFrom *int
	YearTo   *int

	// JournalID filters by journal (optional).
	JournalID *uuid.UUID

	// SourceID filters to articles attributed to a source (optional).
	SourceID *uuid.UUID

	// IsOA filters by open access flag (optional).
	IsOA *bool

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *ArticleFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
