package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// ContributorRepository manages authors and their affiliations. The
// contributor identity key is (family, given, orcid, affiliations_string);
// a nil ORCID or affiliation string matches only rows where the column is
// NULL, never any value.
type ContributorRepository interface {
	// CreateOrUpdate matches the contributor by its full identity key and
	// inserts or updates it following the create-or-update contract. The
	// affiliation set is additive on update.
	// Returns domain.ErrInvalidArgument when family or given is empty.
	CreateOrUpdate(ctx context.Context, contributor *domain.Contributor) (*domain.Contributor, domain.UpsertOutcome, error)

	// GetByID retrieves a contributor and its affiliation links.
	// Returns domain.ErrNotFound if no matching contributor exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Contributor, error)

	// UpsertAffiliation inserts an affiliation by case-insensitive name or
	// returns the existing one. Official and country links are filled in
	// when the stored row has none.
	UpsertAffiliation(ctx context.Context, affiliation *domain.Affiliation) (*domain.Affiliation, domain.UpsertOutcome, error)

	// LinkAffiliation attaches an affiliation to a contributor. Linking an
	// already linked pair is a no-op.
	LinkAffiliation(ctx context.Context, contributorID, affiliationID uuid.UUID) error

	// ListUnresolvedAffiliations retrieves affiliations still missing an
	// official institution link or a country link, for the
	// reconciliation passes.
	ListUnresolvedAffiliations(ctx context.Context, limit, offset int) ([]*domain.Affiliation, int64, error)

	// ListAffiliations retrieves every affiliation, for forced
	// reconciliation runs.
	ListAffiliations(ctx context.Context, limit, offset int) ([]*domain.Affiliation, int64, error)

	// ResolveAffiliation records the official institution and country match
	// found by reconciliation, with the name similarity score. Only NULL
	// links are filled unless force is set.
	ResolveAffiliation(ctx context.Context, affiliationID uuid.UUID, officialID, countryID *uuid.UUID, score *float64, force bool) error

	// CountUnresolved reports how many affiliations still lack an official
	// link and how many lack a country, for the reconciliation gauges.
	CountUnresolved(ctx context.Context) (official int64, country int64, err error)
}
