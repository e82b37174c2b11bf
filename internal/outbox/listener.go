package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
	"github.com/ocabr/observatory/internal/repository"
)

// Syncer applies record mutations to the search index.
type Syncer interface {
	IndexRecord(ctx context.Context, record *domain.DirectoryRecord) error
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}

// messageReader is the subset of kafka.Reader the listener uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Listener consumes entity mutation events and keeps the search index
// in step. Offsets are committed after each message is handled; a
// handling failure is logged and the offset is committed anyway so a
// poison message cannot wedge the group.
type Listener struct {
	reader  messageReader
	syncer  Syncer
	records repository.DirectoryRepository
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewListener creates a listener in the configured consumer group.
func NewListener(
	cfg config.KafkaConfig,
	syncer Syncer,
	records repository.DirectoryRepository,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.ConsumerGroup,
	})
	return &Listener{
		reader:  reader,
		syncer:  syncer,
		records: records,
		logger:  logger.With().Str("component", "index-sync-listener").Logger(),
		metrics: metrics,
	}
}

// Run consumes until the context is cancelled or the reader fails.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("index sync listener started")
	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		eventType := l.handle(ctx, msg)

		if err := l.reader.CommitMessages(ctx, msg); err != nil {
			l.logger.Error().Err(err).
				Str("event_type", eventType).
				Msg("failed to commit offset")
		}
	}
}

// handle applies one message and returns its event type for logging.
func (l *Listener) handle(ctx context.Context, msg kafka.Message) string {
	var event domain.MutationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		l.logger.Error().Err(err).
			Int64("offset", msg.Offset).
			Msg("discarding malformed mutation event")
		l.recordConsumed("malformed", "error")
		return "malformed"
	}

	err := l.apply(ctx, &event)
	result := "ok"
	if err != nil {
		result = "error"
		l.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Str("entity_id", event.EntityID.String()).
			Msg("failed to apply mutation event")
	}
	l.recordConsumed(event.EventType, result)
	return event.EventType
}

func (l *Listener) apply(ctx context.Context, event *domain.MutationEvent) error {
	switch event.EventType {
	case domain.EventTypeRecordPublished:
		record, err := l.records.GetByID(ctx, event.EntityID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Deleted between publish and replay; remove the document.
				return l.syncer.DeleteRecord(ctx, event.EntityID)
			}
			return fmt.Errorf("loading record %s: %w", event.EntityID, err)
		}
		return l.syncer.IndexRecord(ctx, record)

	case domain.EventTypeRecordRetracted, domain.EventTypeRecordDeleted:
		return l.syncer.DeleteRecord(ctx, event.EntityID)

	case domain.EventTypeModerationPending, domain.EventTypeArticleUpserted:
		// Not index-relevant; other consumer groups pick these up.
		return nil

	default:
		l.logger.Warn().Str("event_type", event.EventType).Msg("ignoring unknown event type")
		return nil
	}
}

func (l *Listener) recordConsumed(eventType, result string) {
	if l.metrics == nil {
		return
	}
	l.metrics.RecordEventConsumed(eventType, result)
}

// Close shuts the underlying reader down.
func (l *Listener) Close() error {
	return l.reader.Close()
}
