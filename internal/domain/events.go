package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type constants for entity mutation events.
const (
	EventTypeRecordPublished   = "directory.record_published"
	EventTypeRecordRetracted   = "directory.record_retracted"
	EventTypeRecordDeleted     = "directory.record_deleted"
	EventTypeArticleUpserted   = "article.upserted"
	EventTypeModerationPending = "directory.moderation_pending"
)

// MutationEvent is one entity mutation published to the broker. The
// index sync listener replays these against the search index, so the
// payload carries everything needed to re-index without a database
// round trip for deletes.
type MutationEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	EntityType string          `json:"entity_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewMutationEvent builds an event for the given entity. The payload
// is JSON-serialized; a nil payload is allowed for deletes.
func NewMutationEvent(eventType, entityType string, entityID uuid.UUID, payload interface{}) (*MutationEvent, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal event payload: %w", err)
		}
		raw = b
	}
	return &MutationEvent{
		EventID:    uuid.New(),
		EventType:  eventType,
		EntityID:   entityID,
		EntityType: entityType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// RecordPublishedPayload rides directory.record_published events.
type RecordPublishedPayload struct {
	RecordID uuid.UUID     `json:"record_id"`
	Type     DirectoryType `json:"type"`
	Title    string        `json:"title"`
}

// RecordRetractedPayload rides directory.record_retracted and
// directory.record_deleted events.
type RecordRetractedPayload struct {
	RecordID uuid.UUID    `json:"record_id"`
	Status   RecordStatus `json:"status,omitempty"`
}

// ArticleUpsertedPayload rides article.upserted events.
type ArticleUpsertedPayload struct {
	ArticleID uuid.UUID `json:"article_id"`
	DOI       string    `json:"doi,omitempty"`
	Year      int       `json:"year,omitempty"`
}
