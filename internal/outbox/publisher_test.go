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
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer, logger: zerolog.Nop()}
}

func TestPublisher_PublishRecordPublished(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newTestPublisher(writer)

	record := &domain.DirectoryRecord{
		ID:    uuid.New(),
		Type:  domain.DirectoryTypeEvent,
		Title: "Open Data Day",
	}

	err := publisher.PublishRecordPublished(context.Background(), record)
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, record.ID.String(), string(msg.Key), "messages are keyed by entity id")

	var event domain.MutationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, domain.EventTypeRecordPublished, event.EventType)
	assert.Equal(t, record.ID, event.EntityID)
	assert.Equal(t, "directory_record", event.EntityType)
	assert.NotEqual(t, uuid.Nil, event.EventID)

	var payload domain.RecordPublishedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "Open Data Day", payload.Title)
	assert.Equal(t, domain.DirectoryTypeEvent, payload.Type)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, domain.EventTypeRecordPublished, string(msg.Headers[0].Value))
}

func TestPublisher_PublishRecordDeleted(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newTestPublisher(writer)
	id := uuid.New()

	err := publisher.PublishRecordDeleted(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	var event domain.MutationEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &event))
	assert.Equal(t, domain.EventTypeRecordDeleted, event.EventType)
	assert.Equal(t, id, event.EntityID)
}

func TestPublisher_PublishArticleUpserted(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newTestPublisher(writer)
	year := 2023

	article := &domain.Article{
		ID:   uuid.New(),
		DOI:  "10.1000/xyz",
		Year: &year,
	}

	err := publisher.PublishArticleUpserted(context.Background(), article)
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	var event domain.MutationEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &event))
	assert.Equal(t, "article", event.EntityType)

	var payload domain.ArticleUpsertedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "10.1000/xyz", payload.DOI)
	assert.Equal(t, 2023, payload.Year)
}

func TestPublisher_WriteFailureSurfaces(t *testing.T) {
	writer := &fakeWriter{err: assert.AnError}
	publisher := newTestPublisher(writer)

	err := publisher.PublishRecordDeleted(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.EventTypeRecordDeleted)
}

func TestPublisher_NilEvent(t *testing.T) {
	publisher := newTestPublisher(&fakeWriter{})
	err := publisher.Publish(context.Background(), nil)
	require.Error(t, err)
}
