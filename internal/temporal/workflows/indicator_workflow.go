package workflows

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ocabr/observatory/internal/indicator"
	"github.com/ocabr/observatory/internal/temporal/activities"
)

// GenerateIndicatorWorkflow runs one scheduled indicator task. It is
// registered under indicator.WorkflowName so the schedules created by
// the cross-product enumeration trigger it directly.
func GenerateIndicatorWorkflow(ctx workflow.Context, task indicator.ScheduledTask) (*activities.GenerateIndicatorResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	var acts *activities.IndicatorActivities
	var result activities.GenerateIndicatorResult
	if err := workflow.ExecuteActivity(ctx, acts.GenerateIndicator, task).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
