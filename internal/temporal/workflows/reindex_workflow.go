package workflows

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ocabr/observatory/internal/temporal"
	"github.com/ocabr/observatory/internal/temporal/activities"
)

const reindexPageSize = 500

// ReindexSummary is the rebuild workflow result.
type ReindexSummary struct {
	Pages   int
	Indexed int
}

// ReindexWorkflow rebuilds the directory search index page by page
// from the canonical store.
func ReindexWorkflow(ctx workflow.Context, input temporal.ReindexWorkflowInput) (*ReindexSummary, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	var acts *activities.IndexActivities
	if err := workflow.ExecuteActivity(ctx, acts.EnsureIndices).Get(ctx, nil); err != nil {
		return nil, err
	}

	summary := &ReindexSummary{}
	offset := 0
	for {
		var page activities.RebuildIndexResult
		err := workflow.ExecuteActivity(ctx, acts.RebuildIndexPage, activities.RebuildIndexInput{
			UpdatedAfter: input.UpdatedAfter,
			Offset:       offset,
			Limit:        reindexPageSize,
		}).Get(ctx, &page)
		if err != nil {
			return summary, err
		}

		if page.Indexed > 0 {
			summary.Pages++
			summary.Indexed += page.Indexed
		}
		if page.Done {
			break
		}
		offset += reindexPageSize
	}

	workflow.GetLogger(ctx).Info("index rebuilt", "pages", summary.Pages, "documents", summary.Indexed)
	return summary, nil
}
