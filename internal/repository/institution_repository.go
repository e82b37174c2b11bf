package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// InstitutionRepository manages official institutions and the per-source
// institution records that reference them. The institution identity key is
// (name, source, location).
type InstitutionRepository interface {
	// CreateOrUpdate matches the institution by (name, source, location)
	// and inserts or updates it following the create-or-update contract.
	// Returns domain.ErrInvalidArgument when name or source is empty.
	CreateOrUpdate(ctx context.Context, inst *domain.Institution) (*domain.Institution, domain.UpsertOutcome, error)

	// GetByID retrieves an institution by its UUID.
	// Returns domain.ErrNotFound if no matching institution exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Institution, error)

	// List retrieves institutions matching the filter criteria.
	List(ctx context.Context, filter InstitutionFilter) ([]*domain.Institution, int64, error)

	// CreateOrUpdateSourceInstitution matches by (specific_id, source) and
	// inserts or updates the per-source record. Translations are replaced
	// per language code.
	CreateOrUpdateSourceInstitution(ctx context.Context, si *domain.SourceInstitution) (*domain.SourceInstitution, domain.UpsertOutcome, error)

	// GetSourceInstitution retrieves a per-source record with translations.
	GetSourceInstitution(ctx context.Context, specificID string, source domain.SourceName) (*domain.SourceInstitution, error)

	// ListUnresolvedSourceInstitutions retrieves per-source records without
	// an official institution link, for the reconciliation passes.
	ListUnresolvedSourceInstitutions(ctx context.Context, limit, offset int) ([]*domain.SourceInstitution, int64, error)

	// ResolveSourceInstitution records the official institution match found
	// by reconciliation. Only NULL links are filled unless force is set.
	ResolveSourceInstitution(ctx context.Context, id uuid.UUID, officialID uuid.UUID, force bool) error
}

// InstitutionFilter specifies criteria for listing institutions.
type InstitutionFilter struct {
	// Source filters by registry of origin (optional).
	Source *domain.SourceName

	// InstitutionType filters by type string (optional).
	InstitutionType *string

	// NameContains filters by case-insensitive substring match (optional).
	NameContains *string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *InstitutionFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
