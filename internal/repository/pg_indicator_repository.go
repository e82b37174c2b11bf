package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ IndicatorRepository = (*PgIndicatorRepository)(nil)

// PgIndicatorRepository is a PostgreSQL implementation of IndicatorRepository.
type PgIndicatorRepository struct {
	db DBTX
}

// NewPgIndicatorRepository creates a new PostgreSQL indicator repository.
func NewPgIndicatorRepository(db DBTX) *PgIndicatorRepository {
	return &PgIndicatorRepository{db: db}
}

const indicatorSelect = `
	SELECT id, title, description, code, action_id, practice_id, classification,
		scope, measurement, validity, seq, previous_id, posterior_id,
		start_date_year, end_date_year, summarized, raw_data_path, record_status,
		created_at, updated_at
	FROM indicators`

// chainMatch is the WHERE fragment identifying one supersession chain.
// NULL action and practice match explicitly.
const chainMatch = `
	action_id IS NOT DISTINCT FROM $1
	AND practice_id IS NOT DISTINCT FROM $2
	AND classification = $3
	AND scope = $4
	AND measurement = $5`

// CreateVersion inserts a new indicator as the CURRENT head of its chain.
// The caller is expected to wrap this in a transaction; the predecessor
// flip and the insert must commit together.
func (r *PgIndicatorRepository) CreateVersion(ctx context.Context, indicator *domain.Indicator) (*domain.Indicator, error) {
	if indicator == nil {
		return nil, domain.NewValidationError("indicator", "indicator cannot be nil")
	}
	if indicator.Title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}
	if indicator.Measurement == "" {
		return nil, domain.NewInvalidArgumentError("indicator", "measurement", "measurement is required")
	}

	key := domain.ChainKeyOf(indicator)

	prev := &domain.Indicator{}
	var prevFound bool
	err := r.db.QueryRow(ctx,
		`SELECT id, seq FROM indicators WHERE `+chainMatch+` AND validity = $6`,
		key.ActionID, key.PracticeID, key.Classification, key.Scope,
		indicator.Measurement, domain.ValidityCurrent,
	).Scan(&prev.ID, &prev.Seq)
	switch {
	case err == nil:
		prevFound = true
	case errors.Is(err, pgx.ErrNoRows):
		prevFound = false
	default:
		return nil, fmt.Errorf("failed to find chain head: %w", err)
	}

	if indicator.ID == uuid.Nil {
		indicator.ID = uuid.New()
	}
	indicator.Validity = domain.ValidityCurrent
	if prevFound {
		indicator.Seq = prev.Seq + 1
		indicator.PreviousID = &prev.ID
	} else {
		indicator.Seq = 1
		indicator.PreviousID = nil
	}
	indicator.PosteriorID = nil

	var summarizedJSON []byte
	if indicator.Summarized != nil {
		summarizedJSON, err = json.Marshal(indicator.Summarized)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summarized payload: %w", err)
		}
	}

	now := time.Now().UTC()
	insertQuery := `
		INSERT INTO indicators (
			id, title, description, code, action_id, practice_id, classification,
			scope, measurement, validity, seq, previous_id, posterior_id,
			start_date_year, end_date_year, summarized, raw_data_path, record_status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $19
		)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, insertQuery,
		indicator.ID,
		indicator.Title,
		indicator.Description,
		indicator.Code,
		indicator.ActionID,
		indicator.PracticeID,
		indicator.Classification,
		indicator.Scope,
		indicator.Measurement,
		indicator.Validity,
		indicator.Seq,
		indicator.PreviousID,
		indicator.PosteriorID,
		indicator.StartDateYear,
		indicator.EndDateYear,
		summarizedJSON,
		indicator.RawDataPath,
		indicator.Status,
		now,
	).Scan(&indicator.CreatedAt, &indicator.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert indicator: %w", err)
	}

	if prevFound {
		result, err := r.db.Exec(ctx, `
			UPDATE indicators
			SET validity = $2, posterior_id = $3, updated_at = NOW()
			WHERE id = $1 AND validity = $4`,
			prev.ID, domain.ValidityOutdated, indicator.ID, domain.ValidityCurrent)
		if err != nil {
			return nil, fmt.Errorf("failed to outdate chain head: %w", err)
		}
		// Zero rows means another writer superseded the head first; the
		// transaction must not commit two CURRENT versions.
		if result.RowsAffected() == 0 {
			return nil, fmt.Errorf("chain head %s changed during supersession: %w", prev.ID, domain.ErrAmbiguousIdentity)
		}
	}

	if err := r.addLinks(ctx, indicator); err != nil {
		return nil, err
	}

	return indicator, nil
}

func (r *PgIndicatorRepository) addLinks(ctx context.Context, indicator *domain.Indicator) error {
	type linkSet struct {
		table  string
		column string
		ids    []uuid.UUID
	}
	sets := []linkSet{
		{"indicator_thematic_areas", "thematic_area_id", indicator.ThematicAreaIDs},
		{"indicator_institutions", "institution_id", indicator.InstitutionIDs},
		{"indicator_locations", "location_id", indicator.LocationIDs},
		{"indicator_tags", "tag_id", indicator.TagIDs},
	}

	for _, set := range sets {
		for _, id := range set.ids {
			query := fmt.Sprintf(`
				INSERT INTO %s (indicator_id, %s)
				VALUES ($1, $2)
				ON CONFLICT (indicator_id, %s) DO NOTHING`,
				set.table, set.column, set.column)
			if _, err := r.db.Exec(ctx, query, indicator.ID, id); err != nil {
				return fmt.Errorf("failed to link %s: %w", set.column, err)
			}
		}
	}

	return nil
}

// GetByID retrieves an indicator with its link sets populated.
func (r *PgIndicatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Indicator, error) {
	row := r.db.QueryRow(ctx, indicatorSelect+` WHERE id = $1`, id)
	indicator, err := scanIndicator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("indicator", id.String())
		}
		return nil, fmt.Errorf("failed to get indicator: %w", err)
	}

	if err := r.loadLinks(ctx, indicator); err != nil {
		return nil, err
	}

	return indicator, nil
}

// GetCurrent retrieves the CURRENT head of a chain.
func (r *PgIndicatorRepository) GetCurrent(ctx context.Context, key domain.ChainKey, measurement domain.Measurement) (*domain.Indicator, error) {
	row := r.db.QueryRow(ctx,
		indicatorSelect+` WHERE `+chainMatch+` AND validity = $6`,
		key.ActionID, key.PracticeID, key.Classification, key.Scope,
		measurement, domain.ValidityCurrent)
	indicator, err := scanIndicator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("indicator", fmt.Sprintf("%s/%s", key.Classification, key.Scope))
		}
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}

	if err := r.loadLinks(ctx, indicator); err != nil {
		return nil, err
	}

	return indicator, nil
}

// GetChain retrieves every version of a chain ordered by seq.
func (r *PgIndicatorRepository) GetChain(ctx context.Context, key domain.ChainKey, measurement domain.Measurement) ([]*domain.Indicator, error) {
	rows, err := r.db.Query(ctx,
		indicatorSelect+` WHERE `+chainMatch+` ORDER BY seq ASC`,
		key.ActionID, key.PracticeID, key.Classification, key.Scope, measurement)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain: %w", err)
	}
	defer rows.Close()

	var chain []*domain.Indicator
	for rows.Next() {
		indicator, err := scanIndicator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		chain = append(chain, indicator)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chain: %w", err)
	}

	return chain, nil
}

// List retrieves indicators matching the filter criteria.
func (r *PgIndicatorRepository) List(ctx context.Context, filter IndicatorFilter) ([]*domain.Indicator, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"validity = $1"}
	args := []interface{}{*filter.Validity}
	argIndex := 2

	if filter.Scope != nil {
		conditions = append(conditions, fmt.Sprintf("scope = $%d", argIndex))
		args = append(args, *filter.Scope)
		argIndex++
	}
	if filter.Measurement != nil {
		conditions = append(conditions, fmt.Sprintf("measurement = $%d", argIndex))
		args = append(args, *filter.Measurement)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("record_status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM indicators %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count indicators: %w", err)
	}

	selectQuery := fmt.Sprintf(`%s %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		indicatorSelect, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list indicators: %w", err)
	}
	defer rows.Close()

	indicators := make([]*domain.Indicator, 0, filter.Limit)
	for rows.Next() {
		indicator, err := scanIndicator(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan indicator: %w", err)
		}
		indicators = append(indicators, indicator)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating indicators: %w", err)
	}

	return indicators, totalCount, nil
}

func (r *PgIndicatorRepository) loadLinks(ctx context.Context, indicator *domain.Indicator) error {
	load := func(query string, dest *[]uuid.UUID) error {
		rows, err := r.db.Query(ctx, query, indicator.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			*dest = append(*dest, id)
		}
		return rows.Err()
	}

	if err := load(`SELECT thematic_area_id FROM indicator_thematic_areas WHERE indicator_id = $1`, &indicator.ThematicAreaIDs); err != nil {
		return fmt.Errorf("failed to load indicator thematic areas: %w", err)
	}
	if err := load(`SELECT institution_id FROM indicator_institutions WHERE indicator_id = $1`, &indicator.InstitutionIDs); err != nil {
		return fmt.Errorf("failed to load indicator institutions: %w", err)
	}
	if err := load(`SELECT location_id FROM indicator_locations WHERE indicator_id = $1`, &indicator.LocationIDs); err != nil {
		return fmt.Errorf("failed to load indicator locations: %w", err)
	}
	if err := load(`SELECT tag_id FROM indicator_tags WHERE indicator_id = $1`, &indicator.TagIDs); err != nil {
		return fmt.Errorf("failed to load indicator tags: %w", err)
	}

	return nil
}

// scanIndicator scans a single row into an Indicator.
func scanIndicator(row pgx.Row) (*domain.Indicator, error) {
	var indicator domain.Indicator
	var summarizedJSON []byte
	if err := row.Scan(
		&indicator.ID, &indicator.Title, &indicator.Description, &indicator.Code,
		&indicator.ActionID, &indicator.PracticeID, &indicator.Classification,
		&indicator.Scope, &indicator.Measurement, &indicator.Validity, &indicator.Seq,
		&indicator.PreviousID, &indicator.PosteriorID,
		&indicator.StartDateYear, &indicator.EndDateYear,
		&summarizedJSON, &indicator.RawDataPath, &indicator.Status,
		&indicator.CreatedAt, &indicator.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(summarizedJSON) > 0 {
		var summarized domain.Summarized
		if err := json.Unmarshal(summarizedJSON, &summarized); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summarized payload: %w", err)
		}
		indicator.Summarized = &summarized
	}

	return &indicator, nil
}
