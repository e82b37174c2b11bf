package activities

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ocabr/observatory/internal/promote"
)

// fakePromoter records the options of every pass.
type fakePromoter struct {
	opts  []promote.Options
	stats promote.Stats
	err   error
}

func (f *fakePromoter) pass(opts promote.Options) (*promote.Stats, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	stats := f.stats
	return &stats, nil
}

func (f *fakePromoter) PromoteArticles(_ context.Context, opts promote.Options) (*promote.Stats, error) {
	return f.pass(opts)
}

func (f *fakePromoter) PromoteInstitutions(_ context.Context, opts promote.Options) (*promote.Stats, error) {
	return f.pass(opts)
}

func (f *fakePromoter) PromoteJournals(_ context.Context, opts promote.Options) (*promote.Stats, error) {
	return f.pass(opts)
}

func TestPromoteArticles(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	promoter := &fakePromoter{stats: promote.Stats{Processed: 10, Created: 7, Updated: 2, Skipped: 1}}
	acts := NewPromoteActivities(promoter)
	env.RegisterActivity(acts.PromoteArticles)

	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := env.ExecuteActivity(acts.PromoteArticles, PromoteInput{
		Update:   true,
		Since:    since,
		LoopSize: 50,
	})
	require.NoError(t, err)

	var stats PromoteStats
	require.NoError(t, result.Get(&stats))
	assert.Equal(t, PromoteStats{Processed: 10, Created: 7, Updated: 2, Skipped: 1}, stats)

	require.Len(t, promoter.opts, 1)
	opts := promoter.opts[0]
	assert.True(t, opts.Update)
	assert.Equal(t, 50, opts.LoopSize)
	require.NotNil(t, opts.Since)
	assert.True(t, opts.Since.Equal(since))
}

func TestPromoteArticles_ZeroSincePromotesBacklog(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	promoter := &fakePromoter{}
	acts := NewPromoteActivities(promoter)
	env.RegisterActivity(acts.PromoteArticles)

	_, err := env.ExecuteActivity(acts.PromoteArticles, PromoteInput{})
	require.NoError(t, err)

	require.Len(t, promoter.opts, 1)
	assert.Nil(t, promoter.opts[0].Since)
}

func TestPromoteJournals_Failure(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	promoter := &fakePromoter{err: assert.AnError}
	acts := NewPromoteActivities(promoter)
	env.RegisterActivity(acts.PromoteJournals)

	_, err := env.ExecuteActivity(acts.PromoteJournals, PromoteInput{})
	require.Error(t, err)
}
