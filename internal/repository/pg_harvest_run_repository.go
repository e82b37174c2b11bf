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
var _ HarvestRunRepository = (*PgHarvestRunRepository)(nil)

// PgHarvestRunRepository is a PostgreSQL implementation of HarvestRunRepository.
type PgHarvestRunRepository struct {
	db DBTX
}

// NewPgHarvestRunRepository creates a new PostgreSQL harvest run repository.
func NewPgHarvestRunRepository(db DBTX) *PgHarvestRunRepository {
	return &PgHarvestRunRepository{db: db}
}

const harvestRunSelect = `
	SELECT id, source, filter_params, started_at, finished_at, pages_seen, records_seen, failures
	FROM harvest_runs`

// Create inserts a new run row at harvest start.
func (r *PgHarvestRunRepository) Create(ctx context.Context, run *domain.HarvestRun) error {
	if run == nil {
		return domain.NewValidationError("harvest_run", "run cannot be nil")
	}
	if run.Source == "" {
		return domain.NewInvalidArgumentError("harvest_run", "source", "source is required")
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO harvest_runs (id, source, filter_params, started_at, pages_seen, records_seen, failures)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Source, run.FilterParams, run.StartedAt,
		run.PagesSeen, run.RecordsSeen, run.Failures)
	if err != nil {
		return fmt.Errorf("failed to insert harvest run: %w", err)
	}
	return nil
}

// RecordProgress adds page, record and failure counts to a run.
func (r *PgHarvestRunRepository) RecordProgress(ctx context.Context, id uuid.UUID, pages, records, failures int) error {
	result, err := r.db.Exec(ctx, `
		UPDATE harvest_runs SET
			pages_seen = pages_seen + $2,
			records_seen = records_seen + $3,
			failures = failures + $4
		WHERE id = $1`,
		id, pages, records, failures)
	if err != nil {
		return fmt.Errorf("failed to record harvest progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("harvest_run", id.String())
	}
	return nil
}

// Finish stamps the run's completion time.
func (r *PgHarvestRunRepository) Finish(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE harvest_runs SET finished_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to finish harvest run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("harvest_run", id.String())
	}
	return nil
}

// GetByID retrieves a run.
func (r *PgHarvestRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.HarvestRun, error) {
	run := &domain.HarvestRun{}
	err := r.db.QueryRow(ctx, harvestRunSelect+` WHERE id = $1`, id).Scan(
		&run.ID, &run.Source, &run.FilterParams, &run.StartedAt, &run.FinishedAt,
		&run.PagesSeen, &run.RecordsSeen, &run.Failures,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("harvest_run", id.String())
		}
		return nil, fmt.Errorf("failed to get harvest run: %w", err)
	}
	return run, nil
}

// ListBySource retrieves runs for a source, newest first.
func (r *PgHarvestRunRepository) ListBySource(ctx context.Context, source domain.SourceName, limit, offset int) ([]*domain.HarvestRun, int64, error) {
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM harvest_runs WHERE source = $1`, source).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count harvest runs: %w", err)
	}

	rows, err := r.db.Query(ctx,
		harvestRunSelect+` WHERE source = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`,
		source, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list harvest runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*domain.HarvestRun, 0, limit)
	for rows.Next() {
		run := &domain.HarvestRun{}
		if err := rows.Scan(
			&run.ID, &run.Source, &run.FilterParams, &run.StartedAt, &run.FinishedAt,
			&run.PagesSeen, &run.RecordsSeen, &run.Failures,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan harvest run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating harvest runs: %w", err)
	}

	return runs, totalCount, nil
}
