package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ocabr/observatory/internal/temporal"
	"github.com/ocabr/observatory/internal/temporal/activities"
)

func TestReconcileWorkflow(t *testing.T) {
	t.Run("passes force through and returns the stats", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var acts *activities.ReconcileActivities
		env.OnActivity(acts.Reconcile, mock.Anything, mock.Anything).
			Return(func(_ context.Context, input activities.ReconcileInput) (*activities.ReconcileResult, error) {
				assert.True(t, input.Force)
				return &activities.ReconcileResult{
					Resolved:           map[string]int{"ror": 40},
					UnresolvedOfficial: 3,
				}, nil
			})

		env.ExecuteWorkflow(ReconcileWorkflow, temporal.ReconcileWorkflowInput{ForceUpdate: true})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result activities.ReconcileResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 40, result.Resolved["ror"])
		assert.Equal(t, int64(3), result.UnresolvedOfficial)
	})
}
