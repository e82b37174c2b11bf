// Package workflows holds the Temporal workflow implementations. The
// workflows only sequence activities; all I/O lives in the activities
// package.
package workflows

import (
	"time"

	"github.com/google/uuid"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ocabr/observatory/internal/harvest"
	"github.com/ocabr/observatory/internal/temporal"
	"github.com/ocabr/observatory/internal/temporal/activities"
)

// HarvestSummary is the workflow result.
type HarvestSummary struct {
	RunID    uuid.UUID
	Pages    int
	Records  int
	Failures int
	Promoted activities.PromoteStats
}

// harvestActivityOptions bound each page fetch. Transient upstream
// failures already retry inside the HTTP client, so the activity retry
// policy only covers worker loss and store outages.
func harvestActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    5,
		},
	})
}

// HarvestWorkflow drives one source through its pagination loop. Every
// stored page is promoted into the canonical store before the next
// page is fetched, so a crash never leaves more than one page of raw
// rows unpromoted.
func HarvestWorkflow(ctx workflow.Context, input temporal.HarvestWorkflowInput) (*HarvestSummary, error) {
	ctx = harvestActivityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var harvestActs *activities.HarvestActivities
	var promoteActs *activities.PromoteActivities

	var runID uuid.UUID
	err := workflow.ExecuteActivity(ctx, harvestActs.CreateHarvestRun, activities.CreateRunInput{
		Source:       input.Source,
		FilterParams: input.FilterParams,
	}).Get(ctx, &runID)
	if err != nil {
		return nil, err
	}

	runStart := workflow.Now(ctx).UTC()
	summary := &HarvestSummary{RunID: runID}
	cursor := harvest.CursorStart

	for cursor != "" {
		if input.MaxItems > 0 && summary.Records >= input.MaxItems {
			logger.Info("max items reached", "records", summary.Records)
			break
		}

		var page activities.HarvestPageResult
		err := workflow.ExecuteActivity(ctx, harvestActs.HarvestPage, activities.HarvestPageInput{
			Source: input.Source,
			RunID:  runID,
			Cursor: cursor,
		}).Get(ctx, &page)
		if err != nil {
			finishRun(ctx, harvestActs, runID)
			return summary, err
		}

		summary.Pages++
		summary.Records += page.Stored
		summary.Failures += page.Failed
		cursor = page.NextCursor

		if page.Stored > 0 {
			var stats activities.PromoteStats
			err := workflow.ExecuteActivity(ctx, promoteActivityFor(promoteActs, input.Source), activities.PromoteInput{
				Update: input.PromoteUpdate,
				Since:  runStart,
			}).Get(ctx, &stats)
			if err != nil {
				finishRun(ctx, harvestActs, runID)
				return summary, err
			}
			summary.Promoted.Processed += stats.Processed
			summary.Promoted.Created += stats.Created
			summary.Promoted.Updated += stats.Updated
			summary.Promoted.Skipped += stats.Skipped
			summary.Promoted.Failed += stats.Failed
		}
	}

	finishRun(ctx, harvestActs, runID)
	logger.Info("harvest finished",
		"pages", summary.Pages, "records", summary.Records, "failures", summary.Failures)
	return summary, nil
}

// promoteActivityFor picks the promotion pass matching the harvested
// entity family.
func promoteActivityFor(acts *activities.PromoteActivities, source string) interface{} {
	switch source {
	case "openalex_institutions":
		return acts.PromoteInstitutions
	case "openalex_sources":
		return acts.PromoteJournals
	default:
		return acts.PromoteArticles
	}
}

// finishRun stamps completion best-effort; the run result already
// carries the page counts.
func finishRun(ctx workflow.Context, acts *activities.HarvestActivities, runID uuid.UUID) {
	if err := workflow.ExecuteActivity(ctx, acts.FinishHarvestRun, runID).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("failed to stamp run completion", "error", err)
	}
}
