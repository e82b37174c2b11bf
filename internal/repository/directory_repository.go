package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// DirectoryRepository manages curated directory records across the four
// variants and their moderation state.
type DirectoryRepository interface {
	// Create inserts a new directory record with its M:N links and variant
	// details. Returns domain.ErrAlreadyExists on a duplicate ID.
	Create(ctx context.Context, record *domain.DirectoryRecord) error

	// GetByID retrieves a record with links and variant details populated.
	// Returns domain.ErrNotFound if no matching record exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectoryRecord, error)

	// Update persists scalar fields, variant details and replaces the M:N
	// link sets of an existing record.
	Update(ctx context.Context, record *domain.DirectoryRecord) error

	// UpdateStatus moves a record to the given moderation status.
	// Returns domain.ErrNotFound if no matching record exists.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RecordStatus, updatedBy string) error

	// Delete removes a record and its links.
	Delete(ctx context.Context, id uuid.UUID) error

	// List retrieves records matching the filter criteria with the total
	// count for pagination.
	List(ctx context.Context, filter DirectoryFilter) ([]*domain.DirectoryRecord, int64, error)
}

// DirectoryFilter specifies criteria for listing directory records.
type DirectoryFilter struct {
	// Type filters by directory variant (optional).
	Type *domain.DirectoryType

	// Status filters by one or more moderation statuses (optional).
	Status []domain.RecordStatus

	// ActionID filters by open-science action (optional).
	ActionID *uuid.UUID

	// PracticeID filters by practice (optional).
	PracticeID *uuid.UUID

	// UpdatedAfter filters to records touched after this timestamp,
	// used by full index rebuilds to pick up recent edits (optional).
	UpdatedAfter *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *DirectoryFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
