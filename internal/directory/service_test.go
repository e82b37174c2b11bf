package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

type fakeRecords struct {
	records map[uuid.UUID]*domain.DirectoryRecord
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[uuid.UUID]*domain.DirectoryRecord)}
}

func (f *fakeRecords) Create(_ context.Context, record *domain.DirectoryRecord) error {
	if _, ok := f.records[record.ID]; ok {
		return domain.ErrAlreadyExists
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeRecords) GetByID(_ context.Context, id uuid.UUID) (*domain.DirectoryRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, domain.NewNotFoundError("directory record", id.String())
	}
	clone := *record
	return &clone, nil
}

func (f *fakeRecords) Update(_ context.Context, record *domain.DirectoryRecord) error {
	if _, ok := f.records[record.ID]; !ok {
		return domain.NewNotFoundError("directory record", record.ID.String())
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeRecords) UpdateStatus(_ context.Context, id uuid.UUID, status domain.RecordStatus, updatedBy string) error {
	record, ok := f.records[id]
	if !ok {
		return domain.NewNotFoundError("directory record", id.String())
	}
	record.Status = status
	record.Control.UpdatedBy = updatedBy
	return nil
}

func (f *fakeRecords) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.records[id]; !ok {
		return domain.NewNotFoundError("directory record", id.String())
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRecords) List(_ context.Context, _ repository.DirectoryFilter) ([]*domain.DirectoryRecord, int64, error) {
	var out []*domain.DirectoryRecord
	for _, record := range f.records {
		out = append(out, record)
	}
	return out, int64(len(out)), nil
}

type fakeIndexer struct {
	indexed []uuid.UUID
	deleted []uuid.UUID
	err     error
}

func (f *fakeIndexer) IndexRecord(_ context.Context, record *domain.DirectoryRecord) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, record.ID)
	return nil
}

func (f *fakeIndexer) DeleteRecord(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeNotifier struct {
	notified []uuid.UUID
	err      error
}

func (f *fakeNotifier) NotifyModerationPending(_ context.Context, record *domain.DirectoryRecord) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, record.ID)
	return nil
}

type serviceFixture struct {
	records  *fakeRecords
	indexer  *fakeIndexer
	notifier *fakeNotifier
	service  *Service
}

func newServiceFixture(moderationEnabled bool) *serviceFixture {
	f := &serviceFixture{
		records:  newFakeRecords(),
		indexer:  &fakeIndexer{},
		notifier: &fakeNotifier{},
	}
	f.service = NewService(
		f.records,
		f.indexer,
		f.notifier,
		config.ModerationConfig{Enabled: moderationEnabled, ModeratorEmail: "moderator@example.org"},
		zerolog.Nop(),
		nil,
	)
	return f
}

func eventRecord() *domain.DirectoryRecord {
	return &domain.DirectoryRecord{
		Type:  domain.DirectoryTypeEvent,
		Title: "Open Data Day",
		Event: &domain.EventDetails{Attendance: domain.AttendanceHybrid},
	}
}

func TestService_Create_NonStaffGoesToModeration(t *testing.T) {
	f := newServiceFixture(true)

	record, err := f.service.Create(context.Background(), eventRecord(), false)
	require.NoError(t, err)

	assert.Equal(t, domain.RecordStatusToModerate, record.Status)
	assert.Equal(t, []uuid.UUID{record.ID}, f.notifier.notified)
	assert.Empty(t, f.indexer.indexed)
	assert.Equal(t, []uuid.UUID{record.ID}, f.indexer.deleted)
}

func TestService_Create_StaffStartsInWIP(t *testing.T) {
	f := newServiceFixture(true)

	record, err := f.service.Create(context.Background(), eventRecord(), true)
	require.NoError(t, err)

	assert.Equal(t, domain.RecordStatusWIP, record.Status)
	assert.Empty(t, f.notifier.notified)
}

func TestService_Create_ModerationDisabled(t *testing.T) {
	f := newServiceFixture(false)

	record, err := f.service.Create(context.Background(), eventRecord(), false)
	require.NoError(t, err)

	assert.Equal(t, domain.RecordStatusWIP, record.Status)
	assert.Empty(t, f.notifier.notified)
}

func TestService_Create_RequiresTitle(t *testing.T) {
	f := newServiceFixture(true)

	record := eventRecord()
	record.Title = ""
	_, err := f.service.Create(context.Background(), record, true)
	require.Error(t, err)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestService_SetStatus_PublishIndexesRecord(t *testing.T) {
	f := newServiceFixture(true)
	record, err := f.service.Create(context.Background(), eventRecord(), true)
	require.NoError(t, err)

	published, err := f.service.SetStatus(context.Background(), record.ID, domain.RecordStatusPublished, true, "admin")
	require.NoError(t, err)

	assert.Equal(t, domain.RecordStatusPublished, published.Status)
	assert.Equal(t, []uuid.UUID{record.ID}, f.indexer.indexed)

	stored, err := f.records.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusPublished, stored.Status)
	assert.Equal(t, "admin", stored.Control.UpdatedBy)
}

func TestService_SetStatus_NonStaffCannotPublish(t *testing.T) {
	f := newServiceFixture(true)
	record, err := f.service.Create(context.Background(), eventRecord(), true)
	require.NoError(t, err)

	_, err = f.service.SetStatus(context.Background(), record.ID, domain.RecordStatusPublished, false, "someone")
	require.Error(t, err)

	var transitionErr *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Empty(t, f.indexer.indexed)
}

func TestService_Update_NonStaffSaveReturnsToModeration(t *testing.T) {
	f := newServiceFixture(true)
	record, err := f.service.Create(context.Background(), eventRecord(), true)
	require.NoError(t, err)
	_, err = f.service.SetStatus(context.Background(), record.ID, domain.RecordStatusPublished, true, "admin")
	require.NoError(t, err)

	record.Description = "updated description"
	updated, err := f.service.Update(context.Background(), record, false)
	require.NoError(t, err)

	assert.Equal(t, domain.RecordStatusToModerate, updated.Status)
	assert.Equal(t, []uuid.UUID{record.ID}, f.notifier.notified)
	// Leaving the published status removes the index document.
	assert.Contains(t, f.indexer.deleted, record.ID)
}

func TestService_Update_StaffKeepsStatus(t *testing.T) {
	f := newServiceFixture(true)
	record, err := f.service.Create(context.Background(), eventRecord(), true)
	require.NoError(t, err)
	_, err = f.service.SetStatus(context.Background(), record.ID, domain.RecordStatusPublished, true, "admin")
	require.NoError(t, err)

	record.Description = "corrected typo"
	updated, err := f.service.Update(context.Background(), record, true)
	require.NoError(t, err)

	assert.Equal(t, domain.RecordStatusPublished, updated.Status)
	assert.Len(t, f.indexer.indexed, 2)
}

func TestService_IndexFailureDoesNotFailWrite(t *testing.T) {
	f := newServiceFixture(true)
	f.indexer.err = errors.New("opensearch unavailable")

	record, err := f.service.Create(context.Background(), eventRecord(), true)
	require.NoError(t, err)

	_, err = f.service.SetStatus(context.Background(), record.ID, domain.RecordStatusPublished, true, "admin")
	require.NoError(t, err)

	stored, err := f.records.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusPublished, stored.Status)
}

func TestService_NotifierFailureDoesNotFailWrite(t *testing.T) {
	f := newServiceFixture(true)
	f.notifier.err = errors.New("smtp unavailable")

	record, err := f.service.Create(context.Background(), eventRecord(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusToModerate, record.Status)
}

func TestService_Delete_RemovesIndexDocument(t *testing.T) {
	f := newServiceFixture(true)
	record, err := f.service.Create(context.Background(), eventRecord(), true)
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), record.ID))

	_, err = f.records.GetByID(context.Background(), record.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, f.indexer.deleted, record.ID)
}
