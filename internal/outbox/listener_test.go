package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

type fakeReader struct {
	messages  []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeSyncer struct {
	indexed []uuid.UUID
	deleted []uuid.UUID
	err     error
}

func (s *fakeSyncer) IndexRecord(_ context.Context, record *domain.DirectoryRecord) error {
	if s.err != nil {
		return s.err
	}
	s.indexed = append(s.indexed, record.ID)
	return nil
}

func (s *fakeSyncer) DeleteRecord(_ context.Context, id uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeRecords struct {
	records map[uuid.UUID]*domain.DirectoryRecord
}

func (f *fakeRecords) Create(context.Context, *domain.DirectoryRecord) error { return nil }
func (f *fakeRecords) Update(context.Context, *domain.DirectoryRecord) error { return nil }
func (f *fakeRecords) UpdateStatus(context.Context, uuid.UUID, domain.RecordStatus, string) error {
	return nil
}
func (f *fakeRecords) Delete(context.Context, uuid.UUID) error { return nil }
func (f *fakeRecords) List(context.Context, repository.DirectoryFilter) ([]*domain.DirectoryRecord, int64, error) {
	return nil, 0, nil
}

func (f *fakeRecords) GetByID(_ context.Context, id uuid.UUID) (*domain.DirectoryRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, domain.NewNotFoundError("directory record", id.String())
	}
	return record, nil
}

func eventMessage(t *testing.T, eventType string, entityID uuid.UUID) kafka.Message {
	t.Helper()
	event, err := domain.NewMutationEvent(eventType, "directory_record", entityID, nil)
	require.NoError(t, err)
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(entityID.String()), Value: value}
}

func newTestListener(reader messageReader, syncer Syncer, records repository.DirectoryRepository) *Listener {
	return &Listener{
		reader:  reader,
		syncer:  syncer,
		records: records,
		logger:  zerolog.Nop(),
	}
}

func TestListener_PublishedEventIndexes(t *testing.T) {
	id := uuid.New()
	record := &domain.DirectoryRecord{ID: id, Type: domain.DirectoryTypeEvent, Title: "t", Status: domain.RecordStatusPublished}
	reader := &fakeReader{messages: []kafka.Message{eventMessage(t, domain.EventTypeRecordPublished, id)}}
	syncer := &fakeSyncer{}

	listener := newTestListener(reader, syncer, &fakeRecords{records: map[uuid.UUID]*domain.DirectoryRecord{id: record}})
	err := listener.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{id}, syncer.indexed)
	assert.Len(t, reader.committed, 1, "offset committed after handling")
}

func TestListener_PublishedEventForMissingRecordDeletes(t *testing.T) {
	id := uuid.New()
	reader := &fakeReader{messages: []kafka.Message{eventMessage(t, domain.EventTypeRecordPublished, id)}}
	syncer := &fakeSyncer{}

	listener := newTestListener(reader, syncer, &fakeRecords{records: map[uuid.UUID]*domain.DirectoryRecord{}})
	require.NoError(t, listener.Run(context.Background()))

	assert.Empty(t, syncer.indexed)
	assert.Equal(t, []uuid.UUID{id}, syncer.deleted)
}

func TestListener_RetractedAndDeletedEventsDelete(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	reader := &fakeReader{messages: []kafka.Message{
		eventMessage(t, domain.EventTypeRecordRetracted, a),
		eventMessage(t, domain.EventTypeRecordDeleted, b),
	}}
	syncer := &fakeSyncer{}

	listener := newTestListener(reader, syncer, &fakeRecords{})
	require.NoError(t, listener.Run(context.Background()))

	assert.Equal(t, []uuid.UUID{a, b}, syncer.deleted)
	assert.Len(t, reader.committed, 2)
}

func TestListener_HandlingFailureStillCommits(t *testing.T) {
	id := uuid.New()
	reader := &fakeReader{messages: []kafka.Message{eventMessage(t, domain.EventTypeRecordDeleted, id)}}
	syncer := &fakeSyncer{err: assert.AnError}

	listener := newTestListener(reader, syncer, &fakeRecords{})
	require.NoError(t, listener.Run(context.Background()))

	assert.Len(t, reader.committed, 1, "poison messages do not wedge the group")
}

func TestListener_MalformedMessageDiscarded(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{{Value: []byte("not json")}}}
	syncer := &fakeSyncer{}

	listener := newTestListener(reader, syncer, &fakeRecords{})
	require.NoError(t, listener.Run(context.Background()))

	assert.Empty(t, syncer.indexed)
	assert.Empty(t, syncer.deleted)
	assert.Len(t, reader.committed, 1)
}

func TestListener_ArticleEventsIgnored(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{eventMessage(t, domain.EventTypeArticleUpserted, uuid.New())}}
	syncer := &fakeSyncer{}

	listener := newTestListener(reader, syncer, &fakeRecords{})
	require.NoError(t, listener.Run(context.Background()))

	assert.Empty(t, syncer.indexed)
	assert.Empty(t, syncer.deleted)
}

func TestFanout_IndexPublishesEvent(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newTestPublisher(writer)
	syncer := &fakeSyncer{}
	fanout := NewFanout(syncer, publisher, zerolog.Nop())

	record := &domain.DirectoryRecord{ID: uuid.New(), Type: domain.DirectoryTypePolicy, Title: "p"}
	require.NoError(t, fanout.IndexRecord(context.Background(), record))

	assert.Equal(t, []uuid.UUID{record.ID}, syncer.indexed)
	require.Len(t, writer.messages, 1)
}

func TestFanout_PublishFailureDoesNotFailIndexing(t *testing.T) {
	writer := &fakeWriter{err: assert.AnError}
	publisher := newTestPublisher(writer)
	syncer := &fakeSyncer{}
	fanout := NewFanout(syncer, publisher, zerolog.Nop())

	require.NoError(t, fanout.DeleteRecord(context.Background(), uuid.New()))
	assert.Len(t, syncer.deleted, 1)
}

func TestFanout_SyncFailureSurfaces(t *testing.T) {
	fanout := NewFanout(&fakeSyncer{err: assert.AnError}, nil, zerolog.Nop())
	err := fanout.IndexRecord(context.Background(), &domain.DirectoryRecord{ID: uuid.New()})
	require.Error(t, err)
}

func TestModerationNotifier(t *testing.T) {
	writer := &fakeWriter{}
	notifier := NewModerationNotifier(newTestPublisher(writer))

	record := &domain.DirectoryRecord{ID: uuid.New(), Type: domain.DirectoryTypeEducation, Title: "course"}
	require.NoError(t, notifier.NotifyModerationPending(context.Background(), record))

	require.Len(t, writer.messages, 1)
	var event domain.MutationEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &event))
	assert.Equal(t, domain.EventTypeModerationPending, event.EventType)
}
