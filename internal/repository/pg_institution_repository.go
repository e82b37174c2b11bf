package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ InstitutionRepository = (*PgInstitutionRepository)(nil)

// PgInstitutionRepository is a PostgreSQL implementation of InstitutionRepository.
type PgInstitutionRepository struct {
	db DBTX
}

// NewPgInstitutionRepository creates a new PostgreSQL institution repository.
func NewPgInstitutionRepository(db DBTX) *PgInstitutionRepository {
	return &PgInstitutionRepository{db: db}
}

const institutionSelect = `
	SELECT id, name, acronym, institution_type, location_id, source, created_at, updated_at
	FROM institutions`

// CreateOrUpdate matches the institution by (name, source, location) and
// inserts or updates it.
func (r *PgInstitutionRepository) CreateOrUpdate(ctx context.Context, inst *domain.Institution) (*domain.Institution, domain.UpsertOutcome, error) {
	if inst == nil {
		return nil, "", domain.NewValidationError("institution", "institution cannot be nil")
	}
	if inst.Name == "" {
		return nil, "", domain.NewInvalidArgumentError("institution", "name", "name is required")
	}
	if inst.Source == "" {
		return nil, "", domain.NewInvalidArgumentError("institution", "source", "source is required")
	}

	matchQuery := institutionSelect + `
	WHERE LOWER(name) = LOWER($1) AND source = $2 AND location_id IS NOT DISTINCT FROM $3`

	rows, err := r.db.Query(ctx, matchQuery, inst.Name, inst.Source, inst.LocationID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to match institution: %w", err)
	}
	defer rows.Close()

	var matches []*domain.Institution
	for rows.Next() {
		match, err := scanInstitution(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan institution: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating institutions: %w", err)
	}
	rows.Close()

	switch len(matches) {
	case 0:
		created, err := r.insert(ctx, inst)
		if err != nil {
			return nil, "", err
		}
		return created, domain.OutcomeCreated, nil
	case 1:
		existing := matches[0]
		query := `
			UPDATE institutions SET
				acronym = COALESCE(NULLIF($2, ''), acronym),
				institution_type = COALESCE(NULLIF($3, ''), institution_type),
				updated_at = NOW()
			WHERE id = $1
			RETURNING id, name, acronym, institution_type, location_id, source, created_at, updated_at`
		row := r.db.QueryRow(ctx, query, existing.ID, inst.Acronym, inst.InstitutionType)
		updated, err := scanInstitution(row)
		if err != nil {
			return nil, "", fmt.Errorf("failed to update institution: %w", err)
		}
		return updated, domain.OutcomeUpdated, nil
	default:
		keys := fmt.Sprintf("name=%s source=%s", inst.Name, inst.Source)
		return nil, "", domain.NewAmbiguousIdentityError("institution", keys, len(matches))
	}
}

func (r *PgInstitutionRepository) insert(ctx context.Context, inst *domain.Institution) (*domain.Institution, error) {
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO institutions (id, name, acronym, institution_type, location_id, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		inst.ID,
		inst.Name,
		inst.Acronym,
		inst.InstitutionType,
		inst.LocationID,
		inst.Source,
		now,
	).Scan(&inst.ID, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert institution: %w", err)
	}

	return inst, nil
}

// GetByID retrieves an institution by its UUID.
func (r *PgInstitutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Institution, error) {
	row := r.db.QueryRow(ctx, institutionSelect+` WHERE id = $1`, id)
	inst, err := scanInstitution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("institution", id.String())
		}
		return nil, fmt.Errorf("failed to get institution by ID: %w", err)
	}
	return inst, nil
}

// List retrieves institutions matching the filter criteria.
func (r *PgInstitutionRepository) List(ctx context.Context, filter InstitutionFilter) ([]*domain.Institution, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Source != nil {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIndex))
		args = append(args, *filter.Source)
		argIndex++
	}
	if filter.InstitutionType != nil {
		conditions = append(conditions, fmt.Sprintf("institution_type = $%d", argIndex))
		args = append(args, *filter.InstitutionType)
		argIndex++
	}
	if filter.NameContains != nil {
		conditions = append(conditions, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", argIndex))
		args = append(args, *filter.NameContains)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM institutions %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count institutions: %w", err)
	}

	selectQuery := fmt.Sprintf(`%s %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		institutionSelect, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list institutions: %w", err)
	}
	defer rows.Close()

	institutions := make([]*domain.Institution, 0, filter.Limit)
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan institution: %w", err)
		}
		institutions = append(institutions, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating institutions: %w", err)
	}

	return institutions, totalCount, nil
}

const sourceInstitutionSelect = `
	SELECT id, specific_id, source, name, country_code, official_id, created_at, updated_at
	FROM source_institutions`

// CreateOrUpdateSourceInstitution matches by (specific_id, source) and
// upserts the per-source record with its translations.
func (r *PgInstitutionRepository) CreateOrUpdateSourceInstitution(ctx context.Context, si *domain.SourceInstitution) (*domain.SourceInstitution, domain.UpsertOutcome, error) {
	if si == nil {
		return nil, "", domain.NewValidationError("source_institution", "source institution cannot be nil")
	}
	if si.SpecificID == "" {
		return nil, "", domain.NewInvalidArgumentError("source_institution", "specific_id", "specific ID is required")
	}
	if si.Source == "" {
		return nil, "", domain.NewInvalidArgumentError("source_institution", "source", "source is required")
	}

	if si.ID == uuid.Nil {
		si.ID = uuid.New()
	}
	now := time.Now().UTC()

	var inserted bool
	query := `
		INSERT INTO source_institutions (
			id, specific_id, source, name, country_code, official_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (specific_id, source) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), source_institutions.name),
			country_code = COALESCE(NULLIF(EXCLUDED.country_code, ''), source_institutions.country_code),
			official_id = COALESCE(EXCLUDED.official_id, source_institutions.official_id),
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)`

	err := r.db.QueryRow(ctx, query,
		si.ID, si.SpecificID, si.Source, si.Name, si.CountryCode, si.OfficialID, now,
	).Scan(&si.ID, &si.CreatedAt, &si.UpdatedAt, &inserted)
	if err != nil {
		return nil, "", fmt.Errorf("failed to upsert source institution: %w", err)
	}

	for _, tr := range si.Translations {
		_, err := r.db.Exec(ctx, `
			INSERT INTO source_institution_translations (id, source_institution_id, language, name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (source_institution_id, language) DO UPDATE SET
				name = EXCLUDED.name`,
			uuid.New(), si.ID, tr.Language, tr.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to upsert translation %s: %w", tr.Language, err)
		}
	}

	if inserted {
		return si, domain.OutcomeCreated, nil
	}
	return si, domain.OutcomeUpdated, nil
}

// GetSourceInstitution retrieves a per-source record with translations.
func (r *PgInstitutionRepository) GetSourceInstitution(ctx context.Context, specificID string, source domain.SourceName) (*domain.SourceInstitution, error) {
	if specificID == "" {
		return nil, domain.NewInvalidArgumentError("source_institution", "specific_id", "specific ID is required")
	}

	si := &domain.SourceInstitution{}
	err := r.db.QueryRow(ctx, sourceInstitutionSelect+` WHERE specific_id = $1 AND source = $2`,
		specificID, source).Scan(
		&si.ID, &si.SpecificID, &si.Source, &si.Name, &si.CountryCode,
		&si.OfficialID, &si.CreatedAt, &si.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("source_institution", fmt.Sprintf("%s:%s", source, specificID))
		}
		return nil, fmt.Errorf("failed to get source institution: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, source_institution_id, language, name
		FROM source_institution_translations
		WHERE source_institution_id = $1
		ORDER BY language ASC`, si.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tr domain.SourceInstitutionTranslation
		if err := rows.Scan(&tr.ID, &tr.SourceInstitutionID, &tr.Language, &tr.Name); err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		si.Translations = append(si.Translations, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating translations: %w", err)
	}

	return si, nil
}

// ListUnresolvedSourceInstitutions retrieves per-source records without an
// official institution link.
func (r *PgInstitutionRepository) ListUnresolvedSourceInstitutions(ctx context.Context, limit, offset int) ([]*domain.SourceInstitution, int64, error) {
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM source_institutions WHERE official_id IS NULL`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count unresolved source institutions: %w", err)
	}

	rows, err := r.db.Query(ctx,
		sourceInstitutionSelect+` WHERE official_id IS NULL ORDER BY created_at ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list unresolved source institutions: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.SourceInstitution, 0, limit)
	for rows.Next() {
		si := &domain.SourceInstitution{}
		if err := rows.Scan(
			&si.ID, &si.SpecificID, &si.Source, &si.Name, &si.CountryCode,
			&si.OfficialID, &si.CreatedAt, &si.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan source institution: %w", err)
		}
		records = append(records, si)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating source institutions: %w", err)
	}

	return records, totalCount, nil
}

// ResolveSourceInstitution records the official institution match found by
// reconciliation. Without force, an existing link is left untouched so
// repeat runs change no rows.
func (r *PgInstitutionRepository) ResolveSourceInstitution(ctx context.Context, id uuid.UUID, officialID uuid.UUID, force bool) error {
	query := `
		UPDATE source_institutions SET official_id = $2, updated_at = NOW()
		WHERE id = $1 AND official_id IS NULL`
	if force {
		query = `
		UPDATE source_institutions SET official_id = $2, updated_at = NOW()
		WHERE id = $1`
	}

	result, err := r.db.Exec(ctx, query, id, officialID)
	if err != nil {
		return fmt.Errorf("failed to resolve source institution: %w", err)
	}
	if result.RowsAffected() == 0 && force {
		return domain.NewNotFoundError("source_institution", id.String())
	}
	return nil
}

// scanInstitution scans a single row into an Institution.
func scanInstitution(row pgx.Row) (*domain.Institution, error) {
	var inst domain.Institution
	if err := row.Scan(
		&inst.ID, &inst.Name, &inst.Acronym, &inst.InstitutionType,
		&inst.LocationID, &inst.Source, &inst.CreatedAt, &inst.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &inst, nil
}
