// Package activities holds the Temporal activity implementations for
// harvest, promotion, reconciliation, indicator generation and index
// rebuilds. Each concern gets its own struct with interface seams so
// tests run against fakes.
package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest"
)

// PageHarvester is the runner subset the harvest activities use.
type PageHarvester interface {
	CreateRun(ctx context.Context, source domain.SourceName, filterParams string) (uuid.UUID, error)
	RunPage(ctx context.Context, src harvest.Source, runID uuid.UUID, cursor string) (stored, failed int, nextCursor string, err error)
	FinishRun(ctx context.Context, runID uuid.UUID) error
}

// HarvestActivities drives one source through its pagination loop at
// page granularity, so the workflow can interleave promotion.
type HarvestActivities struct {
	runner  PageHarvester
	sources map[string]harvest.Source
}

// NewHarvestActivities creates the harvest activity set over the named
// sources.
func NewHarvestActivities(runner PageHarvester, sources map[string]harvest.Source) *HarvestActivities {
	return &HarvestActivities{runner: runner, sources: sources}
}

// CreateRunInput is the serializable input for CreateHarvestRun.
type CreateRunInput struct {
	// Source is the upstream source name.
	Source string

	// FilterParams is the filter expression recorded on the run row.
	FilterParams string
}

// CreateHarvestRun opens the bookkeeping row and returns its id.
func (a *HarvestActivities) CreateHarvestRun(ctx context.Context, input CreateRunInput) (uuid.UUID, error) {
	src, err := a.source(input.Source)
	if err != nil {
		return uuid.Nil, err
	}
	return a.runner.CreateRun(ctx, src.Name(), input.FilterParams)
}

// HarvestPageInput is the serializable input for HarvestPage.
type HarvestPageInput struct {
	// Source is the upstream source name.
	Source string

	// RunID is the harvest run this page belongs to.
	RunID uuid.UUID

	// Cursor is the pagination token; harvest.CursorStart begins a run.
	Cursor string
}

// HarvestPageResult summarizes one stored page.
type HarvestPageResult struct {
	Stored     int
	Failed     int
	NextCursor string
}

// HarvestPage fetches and stores a single page. The stored rows are
// durable when this returns, so the workflow can promote them before
// requesting the next page.
func (a *HarvestActivities) HarvestPage(ctx context.Context, input HarvestPageInput) (*HarvestPageResult, error) {
	src, err := a.source(input.Source)
	if err != nil {
		return nil, err
	}

	logger := activity.GetLogger(ctx)
	stored, failed, next, err := a.runner.RunPage(ctx, src, input.RunID, input.Cursor)
	if err != nil {
		logger.Error("harvest page failed", "source", input.Source, "cursor", input.Cursor, "error", err)
		return nil, err
	}

	logger.Info("harvest page stored", "source", input.Source, "stored", stored, "failed", failed)
	return &HarvestPageResult{Stored: stored, Failed: failed, NextCursor: next}, nil
}

// FinishHarvestRun stamps the completion time on the run row.
func (a *HarvestActivities) FinishHarvestRun(ctx context.Context, runID uuid.UUID) error {
	return a.runner.FinishRun(ctx, runID)
}

func (a *HarvestActivities) source(name string) (harvest.Source, error) {
	src, ok := a.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown harvest source %q", name)
	}
	return src, nil
}
