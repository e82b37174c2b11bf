package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// IndicatorRepository manages versioned indicator artifacts. Versions over
// the same (action, practice, classification, scope) tuple form a
// supersession chain; the repository keeps exactly one CURRENT head per
// chain.
type IndicatorRepository interface {
	// CreateVersion inserts a new indicator as the CURRENT head of its
	// chain. When a CURRENT predecessor exists, it is flipped to OUTDATED
	// and its posterior pointer set in the same set of statements; callers
	// must run this inside a transaction (database.DB.WithTransaction) so
	// the flip and the insert commit atomically. Seq is assigned as
	// predecessor seq + 1, or 1 for a new chain.
	CreateVersion(ctx context.Context, indicator *domain.Indicator) (*domain.Indicator, error)

	// GetByID retrieves an indicator with its M:N link sets populated.
	// Returns domain.ErrNotFound if no matching indicator exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Indicator, error)

	// GetCurrent retrieves the CURRENT head of the chain identified by key.
	// Returns domain.ErrNotFound when the chain does not exist.
	GetCurrent(ctx context.Context, key domain.ChainKey, measurement domain.Measurement) (*domain.Indicator, error)

	// GetChain retrieves every version of a chain ordered by seq ascending.
	GetChain(ctx context.Context, key domain.ChainKey, measurement domain.Measurement) ([]*domain.Indicator, error)

	// List retrieves current indicators matching the filter criteria.
	List(ctx context.Context, filter IndicatorFilter) ([]*domain.Indicator, int64, error)
}

// IndicatorFilter specifies criteria for listing indicators.
type IndicatorFilter struct {
	// Scope filters by spatial reach (optional).
	Scope *domain.Scope

	// Measurement filters by metric kind (optional).
	Measurement *domain.Measurement

	// Validity filters by supersession state; defaults to CURRENT when nil.
	Validity *domain.Validity

	// Status filters by moderation status (optional).
	Status *domain.RecordStatus

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values and defaults validity to CURRENT.
func (f *IndicatorFilter) Validate() error {
	if f.Validity == nil {
		current := domain.ValidityCurrent
		f.Validity = &current
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
