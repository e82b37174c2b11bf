package workflows

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ocabr/observatory/internal/temporal"
	"github.com/ocabr/observatory/internal/temporal/activities"
)

func TestReindexWorkflow(t *testing.T) {
	t.Run("walks the listing page by page", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var acts *activities.IndexActivities
		var offsets []int

		env.OnActivity(acts.EnsureIndices, mock.Anything).Return(nil)
		env.OnActivity(acts.RebuildIndexPage, mock.Anything, mock.Anything).
			Return(func(_ context.Context, input activities.RebuildIndexInput) (*activities.RebuildIndexResult, error) {
				offsets = append(offsets, input.Offset)
				if input.Offset == 0 {
					return &activities.RebuildIndexResult{Indexed: input.Limit}, nil
				}
				return &activities.RebuildIndexResult{Indexed: 120, Done: true}, nil
			})

		env.ExecuteWorkflow(ReindexWorkflow, temporal.ReindexWorkflowInput{})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var summary ReindexSummary
		require.NoError(t, env.GetWorkflowResult(&summary))
		assert.Equal(t, 2, summary.Pages)
		assert.Equal(t, reindexPageSize+120, summary.Indexed)
		assert.Equal(t, []int{0, reindexPageSize}, offsets)
	})

	t.Run("forwards the updated-after bound", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		after := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		var acts *activities.IndexActivities

		env.OnActivity(acts.EnsureIndices, mock.Anything).Return(nil)
		env.OnActivity(acts.RebuildIndexPage, mock.Anything, mock.Anything).
			Return(func(_ context.Context, input activities.RebuildIndexInput) (*activities.RebuildIndexResult, error) {
				assert.True(t, input.UpdatedAfter.Equal(after))
				return &activities.RebuildIndexResult{Done: true}, nil
			})

		env.ExecuteWorkflow(ReindexWorkflow, temporal.ReindexWorkflowInput{UpdatedAfter: after})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())
	})

	t.Run("fails when mapping setup fails", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var acts *activities.IndexActivities
		env.OnActivity(acts.EnsureIndices, mock.Anything).
			Return(fmt.Errorf("search cluster unreachable"))

		env.ExecuteWorkflow(ReindexWorkflow, temporal.ReindexWorkflowInput{})

		require.True(t, env.IsWorkflowCompleted())
		require.Error(t, env.GetWorkflowError())
		env.AssertNotCalled(t, "RebuildIndexPage")
	})
}
