package activities

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

// fakeDirectory implements repository.DirectoryRepository over a fixed
// listing result.
type fakeDirectory struct {
	records []*domain.DirectoryRecord
	filters []repository.DirectoryFilter
	err     error
}

func (f *fakeDirectory) Create(context.Context, *domain.DirectoryRecord) error { return nil }
func (f *fakeDirectory) Update(context.Context, *domain.DirectoryRecord) error { return nil }
func (f *fakeDirectory) UpdateStatus(context.Context, uuid.UUID, domain.RecordStatus, string) error {
	return nil
}
func (f *fakeDirectory) Delete(context.Context, uuid.UUID) error { return nil }

func (f *fakeDirectory) GetByID(_ context.Context, id uuid.UUID) (*domain.DirectoryRecord, error) {
	return nil, domain.NewNotFoundError("directory record", id.String())
}

func (f *fakeDirectory) List(_ context.Context, filter repository.DirectoryFilter) ([]*domain.DirectoryRecord, int64, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.records, int64(len(f.records)), nil
}

type fakeBulkIndexer struct {
	ensured int
	batches [][]*domain.DirectoryRecord
	err     error
}

func (f *fakeBulkIndexer) EnsureIndices(context.Context) error {
	f.ensured++
	return f.err
}

func (f *fakeBulkIndexer) BulkIndex(_ context.Context, records []*domain.DirectoryRecord) error {
	f.batches = append(f.batches, records)
	return f.err
}

func publishedRecords(n int) []*domain.DirectoryRecord {
	records := make([]*domain.DirectoryRecord, n)
	for i := range records {
		records[i] = &domain.DirectoryRecord{
			ID:     uuid.New(),
			Type:   domain.DirectoryTypeEvent,
			Title:  "record",
			Status: domain.RecordStatusPublished,
		}
	}
	return records
}

func TestEnsureIndices(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	indexer := &fakeBulkIndexer{}
	acts := NewIndexActivities(&fakeDirectory{}, indexer)
	env.RegisterActivity(acts.EnsureIndices)

	_, err := env.ExecuteActivity(acts.EnsureIndices)
	require.NoError(t, err)
	assert.Equal(t, 1, indexer.ensured)
}

func TestRebuildIndexPage_FullPage(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	store := &fakeDirectory{records: publishedRecords(10)}
	indexer := &fakeBulkIndexer{}
	acts := NewIndexActivities(store, indexer)
	env.RegisterActivity(acts.RebuildIndexPage)

	result, err := env.ExecuteActivity(acts.RebuildIndexPage, RebuildIndexInput{Offset: 20, Limit: 10})
	require.NoError(t, err)

	var page RebuildIndexResult
	require.NoError(t, result.Get(&page))

	assert.Equal(t, 10, page.Indexed)
	assert.False(t, page.Done, "full page means more records may follow")

	require.Len(t, indexer.batches, 1)
	assert.Len(t, indexer.batches[0], 10)

	require.Len(t, store.filters, 1)
	filter := store.filters[0]
	assert.Equal(t, []domain.RecordStatus{domain.RecordStatusPublished}, filter.Status)
	assert.Equal(t, 20, filter.Offset)
	assert.Equal(t, 10, filter.Limit)
	assert.Nil(t, filter.UpdatedAfter)
}

func TestRebuildIndexPage_ShortPageIsLast(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	acts := NewIndexActivities(&fakeDirectory{records: publishedRecords(3)}, &fakeBulkIndexer{})
	env.RegisterActivity(acts.RebuildIndexPage)

	result, err := env.ExecuteActivity(acts.RebuildIndexPage, RebuildIndexInput{Limit: 10})
	require.NoError(t, err)

	var page RebuildIndexResult
	require.NoError(t, result.Get(&page))
	assert.Equal(t, 3, page.Indexed)
	assert.True(t, page.Done)
}

func TestRebuildIndexPage_EmptyPageSkipsBulk(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	indexer := &fakeBulkIndexer{}
	acts := NewIndexActivities(&fakeDirectory{}, indexer)
	env.RegisterActivity(acts.RebuildIndexPage)

	result, err := env.ExecuteActivity(acts.RebuildIndexPage, RebuildIndexInput{Limit: 10})
	require.NoError(t, err)

	var page RebuildIndexResult
	require.NoError(t, result.Get(&page))
	assert.True(t, page.Done)
	assert.Zero(t, page.Indexed)
	assert.Empty(t, indexer.batches)
}

func TestRebuildIndexPage_UpdatedAfterNarrowsListing(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	store := &fakeDirectory{records: publishedRecords(1)}
	acts := NewIndexActivities(store, &fakeBulkIndexer{})
	env.RegisterActivity(acts.RebuildIndexPage)

	after := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := env.ExecuteActivity(acts.RebuildIndexPage, RebuildIndexInput{UpdatedAfter: after, Limit: 10})
	require.NoError(t, err)

	require.Len(t, store.filters, 1)
	require.NotNil(t, store.filters[0].UpdatedAfter)
	assert.True(t, store.filters[0].UpdatedAfter.Equal(after))
}

func TestRebuildIndexPage_ListFailure(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	acts := NewIndexActivities(&fakeDirectory{err: assert.AnError}, &fakeBulkIndexer{})
	env.RegisterActivity(acts.RebuildIndexPage)

	_, err := env.ExecuteActivity(acts.RebuildIndexPage, RebuildIndexInput{Limit: 10})
	require.Error(t, err)
}
