package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
	"github.com/ocabr/observatory/internal/repository"
)

// RunParams bounds a single harvest run.
type RunParams struct {
	// FilterParams is the source-specific filter expression recorded on
	// the run row.
	FilterParams string
	// MaxItems stops the run once this many records were stored.
	// Zero means unbounded.
	MaxItems int
}

// RunResult summarizes a finished harvest run.
type RunResult struct {
	RunID    uuid.UUID
	Pages    int
	Records  int
	Failures int
	// Cursor holds the pagination token after the last stored page,
	// empty when the source was exhausted.
	Cursor string
}

// Runner drives a Source through its pagination loop and persists every
// record into the raw store. Per-record failures are counted and logged
// but do not halt the run; only non-retryable transport errors abort it.
type Runner struct {
	raws    repository.RawRepository
	runs    repository.HarvestRunRepository
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewRunner creates a harvest runner.
func NewRunner(raws repository.RawRepository, runs repository.HarvestRunRepository, logger zerolog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		raws:    raws,
		runs:    runs,
		logger:  logger.With().Str("component", "harvest-runner").Logger(),
		metrics: metrics,
	}
}

// Run harvests src from the beginning until the cursor is exhausted or
// params.MaxItems records were stored.
func (r *Runner) Run(ctx context.Context, src Source, params RunParams) (*RunResult, error) {
	run := &domain.HarvestRun{
		Source:       src.Name(),
		FilterParams: params.FilterParams,
		StartedAt:    time.Now().UTC(),
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("creating harvest run: %w", err)
	}

	result, err := r.Resume(ctx, src, run.ID, CursorStart, params)
	if finishErr := r.runs.Finish(ctx, run.ID); finishErr != nil {
		r.logger.Error().Err(finishErr).Str("run_id", run.ID.String()).Msg("failed to stamp run completion")
	}
	return result, err
}

// Resume continues a harvest run from cursor, storing pages until the
// source is exhausted, MaxItems is reached, or a permanent fetch error
// occurs. The caller owns run creation and completion stamping.
func (r *Runner) Resume(ctx context.Context, src Source, runID uuid.UUID, cursor string, params RunParams) (*RunResult, error) {
	logger := observability.WithHarvestContext(r.logger, string(src.Name()), cursor)
	logger.Info().Str("run_id", runID.String()).Str("filter", params.FilterParams).Msg("harvest starting")

	result := &RunResult{RunID: runID, Cursor: cursor}
	for result.Cursor != "" {
		if params.MaxItems > 0 && result.Records >= params.MaxItems {
			logger.Info().Int("records", result.Records).Msg("max items reached, stopping")
			break
		}

		stored, failed, next, err := r.RunPage(ctx, src, runID, result.Cursor)
		if err != nil {
			return result, err
		}
		result.Pages++
		result.Records += stored
		result.Failures += failed
		result.Cursor = next
	}

	logger.Info().
		Int("pages", result.Pages).
		Int("records", result.Records).
		Int("failures", result.Failures).
		Msg("harvest finished")
	return result, nil
}

// RunPage fetches and stores a single page. Workflows call this to
// sequence page fetches with promotion; one page is fully durable
// before the next is requested.
func (r *Runner) RunPage(ctx context.Context, src Source, runID uuid.UUID, cursor string) (stored, failed int, nextCursor string, err error) {
	// Transient failures were already retried inside the client, so
	// any error here aborts the run. Stored pages stay durable.
	page, err := src.FetchPage(ctx, cursor)
	if err != nil {
		return 0, 0, "", fmt.Errorf("fetching page at cursor %q: %w", cursor, err)
	}

	stored, failed = r.storePage(ctx, page)
	if r.metrics != nil {
		r.metrics.RecordHarvestPage(string(src.Name()), stored)
	}
	if progressErr := r.runs.RecordProgress(ctx, runID, 1, stored, failed); progressErr != nil {
		r.logger.Error().Err(progressErr).Str("run_id", runID.String()).Msg("failed to record run progress")
	}
	return stored, failed, page.NextCursor, nil
}

// CreateRun opens the bookkeeping row for a workflow-driven harvest.
func (r *Runner) CreateRun(ctx context.Context, source domain.SourceName, filterParams string) (uuid.UUID, error) {
	run := &domain.HarvestRun{
		Source:       source,
		FilterParams: filterParams,
		StartedAt:    time.Now().UTC(),
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return uuid.Nil, fmt.Errorf("creating harvest run: %w", err)
	}
	return run.ID, nil
}

// FinishRun stamps the completion time on a workflow-driven harvest.
func (r *Runner) FinishRun(ctx context.Context, runID uuid.UUID) error {
	return r.runs.Finish(ctx, runID)
}

// storePage upserts every record of the page, counting failures instead
// of propagating them.
func (r *Runner) storePage(ctx context.Context, page *Page) (stored, failed int) {
	for _, raw := range page.Articles {
		if _, err := r.raws.UpsertArticle(ctx, raw); err != nil {
			failed++
			logger := observability.WithRecordContext(r.logger, raw.SpecificID, raw.DOI)
			logger.Error().Err(err).Msg("failed to store raw article")
			continue
		}
		stored++
	}
	for _, raw := range page.Institutions {
		if _, err := r.raws.UpsertInstitution(ctx, raw); err != nil {
			failed++
			r.logger.Error().Err(err).Str("specific_id", raw.SpecificID).Msg("failed to store raw institution")
			continue
		}
		stored++
	}
	for _, raw := range page.Journals {
		if _, err := r.raws.UpsertJournal(ctx, raw); err != nil {
			failed++
			r.logger.Error().Err(err).Str("specific_id", raw.SpecificID).Msg("failed to store raw journal")
			continue
		}
		stored++
	}
	return stored, failed
}
