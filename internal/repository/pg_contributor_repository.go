package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ ContributorRepository = (*PgContributorRepository)(nil)

// PgContributorRepository is a PostgreSQL implementation of ContributorRepository.
type PgContributorRepository struct {
	db DBTX
}

// NewPgContributorRepository creates a new PostgreSQL contributor repository.
func NewPgContributorRepository(db DBTX) *PgContributorRepository {
	return &PgContributorRepository{db: db}
}

const contributorSelect = `
	SELECT id, family, given, orcid, affiliations_string, created_at, updated_at
	FROM contributors`

// CreateOrUpdate matches the contributor by (family, given, orcid,
// affiliations_string) and inserts or updates it. Names are compared
// case-insensitively; NULL orcid and affiliations_string match explicitly
// via IS NOT DISTINCT FROM.
func (r *PgContributorRepository) CreateOrUpdate(ctx context.Context, contributor *domain.Contributor) (*domain.Contributor, domain.UpsertOutcome, error) {
	if contributor == nil {
		return nil, "", domain.NewValidationError("contributor", "contributor cannot be nil")
	}
	if contributor.Family == "" && contributor.Given == "" {
		return nil, "", domain.NewInvalidArgumentError("contributor", "family", "family or given name is required")
	}

	matchQuery := contributorSelect + `
	WHERE LOWER(family) = LOWER($1)
		AND LOWER(given) = LOWER($2)
		AND orcid IS NOT DISTINCT FROM $3
		AND affiliations_string IS NOT DISTINCT FROM $4`

	rows, err := r.db.Query(ctx, matchQuery,
		contributor.Family, contributor.Given, contributor.ORCID, contributor.AffiliationsString)
	if err != nil {
		return nil, "", fmt.Errorf("failed to match contributor: %w", err)
	}
	defer rows.Close()

	var matches []*domain.Contributor
	for rows.Next() {
		match, err := scanContributor(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan contributor: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating contributors: %w", err)
	}
	rows.Close()

	switch len(matches) {
	case 0:
		created, err := r.insert(ctx, contributor)
		if err != nil {
			return nil, "", err
		}
		return created, domain.OutcomeCreated, nil
	case 1:
		// The identity key covers every scalar column, so a single match
		// already carries the stored state; only touch updated_at.
		existing := matches[0]
		if _, err := r.db.Exec(ctx, `UPDATE contributors SET updated_at = NOW() WHERE id = $1`, existing.ID); err != nil {
			return nil, "", fmt.Errorf("failed to touch contributor: %w", err)
		}
		return existing, domain.OutcomeUpdated, nil
	default:
		keys := fmt.Sprintf("family=%s given=%s", contributor.Family, contributor.Given)
		return nil, "", domain.NewAmbiguousIdentityError("contributor", keys, len(matches))
	}
}

func (r *PgContributorRepository) insert(ctx context.Context, contributor *domain.Contributor) (*domain.Contributor, error) {
	if contributor.ID == uuid.Nil {
		contributor.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO contributors (id, family, given, orcid, affiliations_string, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		contributor.ID,
		contributor.Family,
		contributor.Given,
		contributor.ORCID,
		contributor.AffiliationsString,
		now,
	).Scan(&contributor.ID, &contributor.CreatedAt, &contributor.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contributor: %w", err)
	}

	return contributor, nil
}

// GetByID retrieves a contributor and its affiliation links.
func (r *PgContributorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contributor, error) {
	row := r.db.QueryRow(ctx, contributorSelect+` WHERE id = $1`, id)
	contributor, err := scanContributor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("contributor", id.String())
		}
		return nil, fmt.Errorf("failed to get contributor by ID: %w", err)
	}

	linkRows, err := r.db.Query(ctx,
		`SELECT affiliation_id FROM contributor_affiliations WHERE contributor_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contributor affiliations: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var affID uuid.UUID
		if err := linkRows.Scan(&affID); err != nil {
			return nil, fmt.Errorf("failed to scan affiliation link: %w", err)
		}
		contributor.AffiliationIDs = append(contributor.AffiliationIDs, affID)
	}
	if err := linkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating affiliation links: %w", err)
	}

	return contributor, nil
}

// UpsertAffiliation inserts an affiliation by case-insensitive name or
// returns the existing one.
func (r *PgContributorRepository) UpsertAffiliation(ctx context.Context, affiliation *domain.Affiliation) (*domain.Affiliation, domain.UpsertOutcome, error) {
	if affiliation == nil {
		return nil, "", domain.NewValidationError("affiliation", "affiliation cannot be nil")
	}
	if affiliation.Name == "" {
		return nil, "", domain.NewInvalidArgumentError("affiliation", "name", "name is required")
	}

	existing := &domain.Affiliation{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, official_id, country_id, score, created_at, updated_at
		FROM affiliations
		WHERE LOWER(name) = LOWER($1)`, affiliation.Name).Scan(
		&existing.ID, &existing.Name, &existing.OfficialID, &existing.CountryID,
		&existing.Score, &existing.CreatedAt, &existing.UpdatedAt,
	)
	if err == nil {
		if existing.OfficialID == nil && affiliation.OfficialID != nil ||
			existing.CountryID == nil && affiliation.CountryID != nil {
			if err := r.ResolveAffiliation(ctx, existing.ID, affiliation.OfficialID, affiliation.CountryID, affiliation.Score, false); err != nil {
				return nil, "", err
			}
			if affiliation.OfficialID != nil {
				existing.OfficialID = affiliation.OfficialID
			}
			if affiliation.CountryID != nil {
				existing.CountryID = affiliation.CountryID
			}
		}
		return existing, domain.OutcomeUpdated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("failed to match affiliation: %w", err)
	}

	if affiliation.ID == uuid.Nil {
		affiliation.ID = uuid.New()
	}
	now := time.Now().UTC()

	err = r.db.QueryRow(ctx, `
		INSERT INTO affiliations (id, name, official_id, country_id, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at`,
		affiliation.ID,
		affiliation.Name,
		affiliation.OfficialID,
		affiliation.CountryID,
		affiliation.Score,
		now,
	).Scan(&affiliation.ID, &affiliation.CreatedAt, &affiliation.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to insert affiliation: %w", err)
	}

	return affiliation, domain.OutcomeCreated, nil
}

// LinkAffiliation attaches an affiliation to a contributor.
func (r *PgContributorRepository) LinkAffiliation(ctx context.Context, contributorID, affiliationID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO contributor_affiliations (contributor_id, affiliation_id)
		VALUES ($1, $2)
		ON CONFLICT (contributor_id, affiliation_id) DO NOTHING`,
		contributorID, affiliationID)
	if err != nil {
		return fmt.Errorf("failed to link affiliation: %w", err)
	}
	return nil
}

// ListUnresolvedAffiliations retrieves affiliations still missing an
// official institution link or a country link. A row resolved for one
// but not the other stays listed so later passes can fill the rest.
func (r *PgContributorRepository) ListUnresolvedAffiliations(ctx context.Context, limit, offset int) ([]*domain.Affiliation, int64, error) {
	return r.listAffiliations(ctx, `WHERE official_id IS NULL OR country_id IS NULL`, limit, offset)
}

// ListAffiliations retrieves every affiliation, for forced
// reconciliation runs that revisit already-resolved rows.
func (r *PgContributorRepository) ListAffiliations(ctx context.Context, limit, offset int) ([]*domain.Affiliation, int64, error) {
	return r.listAffiliations(ctx, "", limit, offset)
}

func (r *PgContributorRepository) listAffiliations(ctx context.Context, whereClause string, limit, offset int) ([]*domain.Affiliation, int64, error) {
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM affiliations `+whereClause).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count affiliations: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, name, official_id, country_id, score, created_at, updated_at
		FROM affiliations
		`+whereClause+`
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list affiliations: %w", err)
	}
	defer rows.Close()

	affiliations := make([]*domain.Affiliation, 0, limit)
	for rows.Next() {
		var aff domain.Affiliation
		if err := rows.Scan(
			&aff.ID, &aff.Name, &aff.OfficialID, &aff.CountryID,
			&aff.Score, &aff.CreatedAt, &aff.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan affiliation: %w", err)
		}
		affiliations = append(affiliations, &aff)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating affiliations: %w", err)
	}

	return affiliations, totalCount, nil
}

// ResolveAffiliation records the official institution and country match
// found by reconciliation. Only NULL columns are filled; an existing link
// is never overwritten, which keeps repeat runs from changing rows.
func (r *PgContributorRepository) ResolveAffiliation(ctx context.Context, affiliationID uuid.UUID, officialID, countryID *uuid.UUID, score *float64, force bool) error {
	query := `
		UPDATE affiliations SET
			official_id = COALESCE(official_id, $2),
			country_id = COALESCE(country_id, $3),
			score = COALESCE($4, score),
			updated_at = NOW()
		WHERE id = $1`
	if force {
		query = `
		UPDATE affiliations SET
			official_id = COALESCE($2, official_id),
			country_id = COALESCE($3, country_id),
			score = COALESCE($4, score),
			updated_at = NOW()
		WHERE id = $1`
	}
	result, err := r.db.Exec(ctx, query, affiliationID, officialID, countryID, score)
	if err != nil {
		return fmt.Errorf("failed to resolve affiliation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("affiliation", affiliationID.String())
	}
	return nil
}

// CountUnresolved reports how many affiliations lack an official link and
// how many lack a country.
func (r *PgContributorRepository) CountUnresolved(ctx context.Context) (int64, int64, error) {
	var official, country int64
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE official_id IS NULL),
			COUNT(*) FILTER (WHERE country_id IS NULL)
		FROM affiliations`).Scan(&official, &country)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count unresolved affiliations: %w", err)
	}
	return official, country, nil
}

// scanContributor scans a single row into a Contributor.
func scanContributor(row pgx.Row) (*domain.Contributor, error) {
	var contributor domain.Contributor
	if err := row.Scan(
		&contributor.ID, &contributor.Family, &contributor.Given,
		&contributor.ORCID, &contributor.AffiliationsString,
		&contributor.CreatedAt, &contributor.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &contributor, nil
}
