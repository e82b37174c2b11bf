package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ LookupRepository = (*PgLookupRepository)(nil)

// PgLookupRepository is a PostgreSQL implementation of LookupRepository.
type PgLookupRepository struct {
	db DBTX
}

// NewPgLookupRepository creates a new PostgreSQL lookup repository.
func NewPgLookupRepository(db DBTX) *PgLookupRepository {
	return &PgLookupRepository{db: db}
}

// GetOrCreateSource matches a source by name or inserts it.
func (r *PgLookupRepository) GetOrCreateSource(ctx context.Context, name domain.SourceName) (*domain.Source, error) {
	if name == "" {
		return nil, domain.NewInvalidArgumentError("source", "name", "name is required")
	}

	source := &domain.Source{}
	err := r.db.QueryRow(ctx, `SELECT id, name FROM sources WHERE name = $1`, name).Scan(&source.ID, &source.Name)
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match source: %w", err)
	}

	source = &domain.Source{ID: uuid.New(), Name: name}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO sources (id, name) VALUES ($1, $2)`, source.ID, source.Name); err != nil {
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}
	return source, nil
}

// GetOrCreateLicense matches a license by name or inserts it.
func (r *PgLookupRepository) GetOrCreateLicense(ctx context.Context, license *domain.License) (*domain.License, error) {
	if license == nil {
		return nil, domain.NewValidationError("license", "license cannot be nil")
	}
	if license.Name == "" {
		return nil, domain.NewInvalidArgumentError("license", "name", "name is required")
	}

	existing := &domain.License{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, url, start_date, delay_in_days FROM licenses
		WHERE LOWER(name) = LOWER($1)`, license.Name).Scan(
		&existing.ID, &existing.Name, &existing.URL, &existing.Start, &existing.DelayInDays,
	)
	if err == nil {
		if (existing.URL == "" && license.URL != "") ||
			(existing.Start == nil && license.Start != nil) ||
			(existing.DelayInDays == nil && license.DelayInDays != nil) {
			_, err := r.db.Exec(ctx, `
				UPDATE licenses SET
					url = COALESCE(NULLIF(url, ''), $2),
					start_date = COALESCE(start_date, $3),
					delay_in_days = COALESCE(delay_in_days, $4)
				WHERE id = $1`,
				existing.ID, license.URL, license.Start, license.DelayInDays)
			if err != nil {
				return nil, fmt.Errorf("failed to update license: %w", err)
			}
			if existing.URL == "" {
				existing.URL = license.URL
			}
			if existing.Start == nil {
				existing.Start = license.Start
			}
			if existing.DelayInDays == nil {
				existing.DelayInDays = license.DelayInDays
			}
		}
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match license: %w", err)
	}

	if license.ID == uuid.Nil {
		license.ID = uuid.New()
	}
	if _, err := r.db.Exec(ctx, `
		INSERT INTO licenses (id, name, url, start_date, delay_in_days)
		VALUES ($1, $2, $3, $4, $5)`,
		license.ID, license.Name, license.URL, license.Start, license.DelayInDays); err != nil {
		return nil, fmt.Errorf("failed to insert license: %w", err)
	}
	return license, nil
}

// ListLicenses retrieves all licenses ordered by name.
func (r *PgLookupRepository) ListLicenses(ctx context.Context) ([]*domain.License, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, url, start_date, delay_in_days FROM licenses
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*domain.License
	for rows.Next() {
		license := &domain.License{}
		if err := rows.Scan(
			&license.ID, &license.Name, &license.URL, &license.Start, &license.DelayInDays,
		); err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, license)
	}
	return licenses, rows.Err()
}

// CreateOrUpdateConcept matches the concept by lowercased specific_id and
// inserts or updates it. Parent and thematic area links are additive.
func (r *PgLookupRepository) CreateOrUpdateConcept(ctx context.Context, concept *domain.Concept) (*domain.Concept, domain.UpsertOutcome, error) {
	if concept == nil {
		return nil, "", domain.NewValidationError("concept", "concept cannot be nil")
	}
	if concept.SpecificID == "" {
		return nil, "", domain.NewInvalidArgumentError("concept", "specific_id", "specific ID is required")
	}
	concept.SpecificID = strings.ToLower(concept.SpecificID)

	if concept.ID == uuid.Nil {
		concept.ID = uuid.New()
	}

	var inserted bool
	err := r.db.QueryRow(ctx, `
		INSERT INTO concepts (id, specific_id, name, level, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (specific_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), concepts.name),
			level = EXCLUDED.level,
			source = concepts.source
		RETURNING id, (xmax = 0)`,
		concept.ID, concept.SpecificID, concept.Name, concept.Level, concept.Source,
	).Scan(&concept.ID, &inserted)
	if err != nil {
		return nil, "", fmt.Errorf("failed to upsert concept: %w", err)
	}

	for _, parentID := range concept.ParentIDs {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO concept_parents (concept_id, parent_id)
			VALUES ($1, $2)
			ON CONFLICT (concept_id, parent_id) DO NOTHING`,
			concept.ID, parentID); err != nil {
			return nil, "", fmt.Errorf("failed to link concept parent: %w", err)
		}
	}
	for _, areaID := range concept.ThematicAreaIDs {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO concept_thematic_areas (concept_id, thematic_area_id)
			VALUES ($1, $2)
			ON CONFLICT (concept_id, thematic_area_id) DO NOTHING`,
			concept.ID, areaID); err != nil {
			return nil, "", fmt.Errorf("failed to link concept thematic area: %w", err)
		}
	}

	if inserted {
		return concept, domain.OutcomeCreated, nil
	}
	return concept, domain.OutcomeUpdated, nil
}

// GetConceptBySpecificID retrieves a concept by its lowercased source-local
// identifier.
func (r *PgLookupRepository) GetConceptBySpecificID(ctx context.Context, specificID string) (*domain.Concept, error) {
	if specificID == "" {
		return nil, domain.NewInvalidArgumentError("concept", "specific_id", "specific ID is required")
	}
	specificID = strings.ToLower(specificID)

	concept := &domain.Concept{}
	err := r.db.QueryRow(ctx, `
		SELECT id, specific_id, name, level, source FROM concepts
		WHERE specific_id = $1`, specificID).Scan(
		&concept.ID, &concept.SpecificID, &concept.Name, &concept.Level, &concept.Source,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("concept", specificID)
		}
		return nil, fmt.Errorf("failed to get concept: %w", err)
	}
	return concept, nil
}

// GetOrCreateThematicArea matches the level triple or inserts it.
func (r *PgLookupRepository) GetOrCreateThematicArea(ctx context.Context, area *domain.ThematicArea) (*domain.ThematicArea, error) {
	if area == nil {
		return nil, domain.NewValidationError("thematic_area", "thematic area cannot be nil")
	}
	if area.Level0 == "" {
		return nil, domain.NewInvalidArgumentError("thematic_area", "level0", "level0 is required")
	}

	existing := &domain.ThematicArea{}
	err := r.db.QueryRow(ctx, `
		SELECT id, level0, level1, level2 FROM thematic_areas
		WHERE level0 = $1 AND level1 = $2 AND level2 = $3`,
		area.Level0, area.Level1, area.Level2).Scan(
		&existing.ID, &existing.Level0, &existing.Level1, &existing.Level2,
	)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match thematic area: %w", err)
	}

	if area.ID == uuid.Nil {
		area.ID = uuid.New()
	}
	if _, err := r.db.Exec(ctx, `
		INSERT INTO thematic_areas (id, level0, level1, level2)
		VALUES ($1, $2, $3, $4)`,
		area.ID, area.Level0, area.Level1, area.Level2); err != nil {
		return nil, fmt.Errorf("failed to insert thematic area: %w", err)
	}
	return area, nil
}

// ListThematicAreas retrieves all thematic areas ordered by hierarchy.
func (r *PgLookupRepository) ListThematicAreas(ctx context.Context) ([]*domain.ThematicArea, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, level0, level1, level2 FROM thematic_areas
		ORDER BY level0, level1, level2`)
	if err != nil {
		return nil, fmt.Errorf("failed to list thematic areas: %w", err)
	}
	defer rows.Close()

	var areas []*domain.ThematicArea
	for rows.Next() {
		area := &domain.ThematicArea{}
		if err := rows.Scan(&area.ID, &area.Level0, &area.Level1, &area.Level2); err != nil {
			return nil, fmt.Errorf("failed to scan thematic area: %w", err)
		}
		areas = append(areas, area)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thematic areas: %w", err)
	}
	return areas, nil
}

// GetOrCreateAction matches an action by case-insensitive name or inserts it.
func (r *PgLookupRepository) GetOrCreateAction(ctx context.Context, name string) (*domain.Action, error) {
	if name == "" {
		return nil, domain.NewInvalidArgumentError("action", "name", "name is required")
	}

	action := &domain.Action{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name FROM actions WHERE LOWER(name) = LOWER($1)`, name).Scan(&action.ID, &action.Name)
	if err == nil {
		return action, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match action: %w", err)
	}

	action = &domain.Action{ID: uuid.New(), Name: name}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO actions (id, name) VALUES ($1, $2)`, action.ID, action.Name); err != nil {
		return nil, fmt.Errorf("failed to insert action: %w", err)
	}
	return action, nil
}

// GetOrCreatePractice matches a practice by case-insensitive name within
// an action or inserts it.
func (r *PgLookupRepository) GetOrCreatePractice(ctx context.Context, name string, actionID uuid.UUID) (*domain.Practice, error) {
	if name == "" {
		return nil, domain.NewInvalidArgumentError("practice", "name", "name is required")
	}

	practice := &domain.Practice{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, action_id FROM practices
		WHERE LOWER(name) = LOWER($1) AND action_id = $2`, name, actionID).Scan(
		&practice.ID, &practice.Name, &practice.ActionID,
	)
	if err == nil {
		return practice, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match practice: %w", err)
	}

	practice = &domain.Practice{ID: uuid.New(), Name: name, ActionID: actionID}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO practices (id, name, action_id) VALUES ($1, $2, $3)`,
		practice.ID, practice.Name, practice.ActionID); err != nil {
		return nil, fmt.Errorf("failed to insert practice: %w", err)
	}
	return practice, nil
}

// ListActions retrieves all actions with their practices.
func (r *PgLookupRepository) ListActions(ctx context.Context) ([]*domain.Action, []*domain.Practice, error) {
	actionRows, err := r.db.Query(ctx, `SELECT id, name FROM actions ORDER BY name`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer actionRows.Close()

	var actions []*domain.Action
	for actionRows.Next() {
		action := &domain.Action{}
		if err := actionRows.Scan(&action.ID, &action.Name); err != nil {
			return nil, nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := actionRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating actions: %w", err)
	}
	actionRows.Close()

	practiceRows, err := r.db.Query(ctx, `SELECT id, name, action_id FROM practices ORDER BY name`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list practices: %w", err)
	}
	defer practiceRows.Close()

	var practices []*domain.Practice
	for practiceRows.Next() {
		practice := &domain.Practice{}
		if err := practiceRows.Scan(&practice.ID, &practice.Name, &practice.ActionID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan practice: %w", err)
		}
		practices = append(practices, practice)
	}
	if err := practiceRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating practices: %w", err)
	}

	return actions, practices, nil
}

// GetOrCreateTag matches a tag by case-insensitive name or inserts it.
func (r *PgLookupRepository) GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	if name == "" {
		return nil, domain.NewInvalidArgumentError("tag", "name", "name is required")
	}

	tag := &domain.Tag{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name FROM tags WHERE LOWER(name) = LOWER($1)`, name).Scan(&tag.ID, &tag.Name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match tag: %w", err)
	}

	tag = &domain.Tag{ID: uuid.New(), Name: name}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO tags (id, name) VALUES ($1, $2)`, tag.ID, tag.Name); err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}
	return tag, nil
}
