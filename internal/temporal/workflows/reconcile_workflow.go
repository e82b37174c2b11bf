package workflows

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ocabr/observatory/internal/temporal"
	"github.com/ocabr/observatory/internal/temporal/activities"
)

// ReconcileWorkflow runs the affiliation resolution passes. The passes
// are idempotent, so the whole run is a single retryable activity.
func ReconcileWorkflow(ctx workflow.Context, input temporal.ReconcileWorkflowInput) (*activities.ReconcileResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Minute,
			BackoffCoefficient: 2,
			MaximumInterval:    15 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	var acts *activities.ReconcileActivities
	var result activities.ReconcileResult
	err := workflow.ExecuteActivity(ctx, acts.Reconcile, activities.ReconcileInput{
		Force: input.ForceUpdate,
	}).Get(ctx, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
