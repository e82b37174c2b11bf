package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// JournalRepository manages canonical periodicals. The identity key is
// issn_l when present, falling back to the case-insensitive name.
type JournalRepository interface {
	// CreateOrUpdate matches the journal by issn_l (or name when issn_l is
	// empty) and inserts or updates it following the create-or-update
	// contract. The ISSNs set is additive on update.
	// Returns domain.ErrAmbiguousIdentity when the key matches several rows
	// and domain.ErrInvalidArgument when both issn_l and name are empty.
	CreateOrUpdate(ctx context.Context, journal *domain.Journal) (*domain.Journal, domain.UpsertOutcome, error)

	// GetByID retrieves a journal by its UUID.
	// Returns domain.ErrNotFound if no matching journal exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Journal, error)

	// GetByISSNL retrieves a journal by its linking ISSN.
	GetByISSNL(ctx context.Context, issnl string) (*domain.Journal, error)

	// List retrieves journals ordered by name with the total count.
	List(ctx context.Context, limit, offset int) ([]*domain.Journal, int64, error)
}
