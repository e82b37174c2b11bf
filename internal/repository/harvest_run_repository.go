package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// HarvestRunRepository tracks harvest task executions for bookkeeping and
// operator visibility.
type HarvestRunRepository interface {
	// Create inserts a new run row at harvest start.
	Create(ctx context.Context, run *domain.HarvestRun) error

	// RecordProgress adds page, record and failure counts to a run.
	RecordProgress(ctx context.Context, id uuid.UUID, pages, records, failures int) error

	// Finish stamps the run's completion time.
	Finish(ctx context.Context, id uuid.UUID) error

	// GetByID retrieves a run.
	// Returns domain.ErrNotFound if no matching run exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.HarvestRun, error)

	// ListBySource retrieves runs for a source, newest first.
	ListBySource(ctx context.Context, source domain.SourceName, limit, offset int) ([]*domain.HarvestRun, int64, error)
}
