package activities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ocabr/observatory/internal/reconcile"
)

type fakeReconciler struct {
	opts  []reconcile.Options
	stats reconcile.Stats
	err   error
}

func (f *fakeReconciler) Run(_ context.Context, opts reconcile.Options) (*reconcile.Stats, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	stats := f.stats
	return &stats, nil
}

func TestReconcile(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	reconciler := &fakeReconciler{stats: reconcile.Stats{
		Resolved:           map[string]int{"ror": 12, "fuzzy": 3},
		UnresolvedOfficial: 5,
		UnresolvedCountry:  2,
	}}
	acts := NewReconcileActivities(reconciler)
	env.RegisterActivity(acts.Reconcile)

	result, err := env.ExecuteActivity(acts.Reconcile, ReconcileInput{Force: true})
	require.NoError(t, err)

	var out ReconcileResult
	require.NoError(t, result.Get(&out))

	assert.Equal(t, map[string]int{"ror": 12, "fuzzy": 3}, out.Resolved)
	assert.Equal(t, int64(5), out.UnresolvedOfficial)
	assert.Equal(t, int64(2), out.UnresolvedCountry)

	require.Len(t, reconciler.opts, 1)
	assert.True(t, reconciler.opts[0].Force)
}

func TestReconcile_Failure(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	acts := NewReconcileActivities(&fakeReconciler{err: assert.AnError})
	env.RegisterActivity(acts.Reconcile)

	_, err := env.ExecuteActivity(acts.Reconcile, ReconcileInput{})
	require.Error(t, err)
}
