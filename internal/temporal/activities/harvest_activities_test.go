package activities

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest"
)

// fakeSource implements harvest.Source; the activities never fetch
// directly, so FetchPage is unreachable here.
type fakeSource struct {
	name domain.SourceName
}

func (f *fakeSource) Name() domain.SourceName { return f.name }

func (f *fakeSource) FetchPage(context.Context, string) (*harvest.Page, error) {
	return &harvest.Page{}, nil
}

// fakeRunner implements PageHarvester and records what it was asked.
type fakeRunner struct {
	runID  uuid.UUID
	stored int
	failed int
	next   string
	err    error

	createdSource domain.SourceName
	createdFilter string
	cursors       []string
	finished      []uuid.UUID
}

func (f *fakeRunner) CreateRun(_ context.Context, source domain.SourceName, filterParams string) (uuid.UUID, error) {
	f.createdSource = source
	f.createdFilter = filterParams
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.runID, nil
}

func (f *fakeRunner) RunPage(_ context.Context, _ harvest.Source, _ uuid.UUID, cursor string) (int, int, string, error) {
	f.cursors = append(f.cursors, cursor)
	if f.err != nil {
		return 0, 0, "", f.err
	}
	return f.stored, f.failed, f.next, nil
}

func (f *fakeRunner) FinishRun(_ context.Context, runID uuid.UUID) error {
	f.finished = append(f.finished, runID)
	return nil
}

func newHarvestActivities(runner *fakeRunner) *HarvestActivities {
	return NewHarvestActivities(runner, map[string]harvest.Source{
		"openalex": &fakeSource{name: domain.SourceOpenAlex},
	})
}

func TestCreateHarvestRun(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	runner := &fakeRunner{runID: uuid.New()}
	acts := newHarvestActivities(runner)
	env.RegisterActivity(acts.CreateHarvestRun)

	result, err := env.ExecuteActivity(acts.CreateHarvestRun, CreateRunInput{
		Source:       "openalex",
		FilterParams: "from=2020",
	})
	require.NoError(t, err)

	var runID uuid.UUID
	require.NoError(t, result.Get(&runID))

	assert.Equal(t, runner.runID, runID)
	assert.Equal(t, domain.SourceOpenAlex, runner.createdSource)
	assert.Equal(t, "from=2020", runner.createdFilter)
}

func TestCreateHarvestRun_UnknownSource(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	acts := newHarvestActivities(&fakeRunner{})
	env.RegisterActivity(acts.CreateHarvestRun)

	_, err := env.ExecuteActivity(acts.CreateHarvestRun, CreateRunInput{Source: "gopher_index"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown harvest source")
}

func TestHarvestPage(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	runner := &fakeRunner{stored: 25, failed: 2, next: "cursor-2"}
	acts := newHarvestActivities(runner)
	env.RegisterActivity(acts.HarvestPage)

	result, err := env.ExecuteActivity(acts.HarvestPage, HarvestPageInput{
		Source: "openalex",
		RunID:  uuid.New(),
		Cursor: harvest.CursorStart,
	})
	require.NoError(t, err)

	var page HarvestPageResult
	require.NoError(t, result.Get(&page))

	assert.Equal(t, 25, page.Stored)
	assert.Equal(t, 2, page.Failed)
	assert.Equal(t, "cursor-2", page.NextCursor)
	assert.Equal(t, []string{harvest.CursorStart}, runner.cursors)
}

func TestHarvestPage_RunnerFailure(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	runner := &fakeRunner{err: assert.AnError}
	acts := newHarvestActivities(runner)
	env.RegisterActivity(acts.HarvestPage)

	_, err := env.ExecuteActivity(acts.HarvestPage, HarvestPageInput{
		Source: "openalex",
		RunID:  uuid.New(),
		Cursor: harvest.CursorStart,
	})
	require.Error(t, err)
}

func TestFinishHarvestRun(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	runner := &fakeRunner{}
	acts := newHarvestActivities(runner)
	env.RegisterActivity(acts.FinishHarvestRun)

	runID := uuid.New()
	_, err := env.ExecuteActivity(acts.FinishHarvestRun, runID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{runID}, runner.finished)
}
