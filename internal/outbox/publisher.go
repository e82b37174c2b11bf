package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
)

// messageWriter is the subset of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes entity mutation events to the broker. Messages are
// keyed by entity id so mutations of the same entity stay ordered
// within a partition.
type Publisher struct {
	writer  messageWriter
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a publisher against the configured brokers.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return &Publisher{
		writer:  writer,
		logger:  logger.With().Str("component", "event-publisher").Logger(),
		metrics: metrics,
	}
}

// Publish serializes the event and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, event *domain.MutationEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal mutation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EntityID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write mutation event %s: %w", event.EventType, err)
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(event.EventType)
	}
	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("entity_id", event.EntityID.String()).
		Msg("mutation event published")
	return nil
}

// PublishRecordPublished emits the event for a record entering
// PUBLISHED status.
func (p *Publisher) PublishRecordPublished(ctx context.Context, record *domain.DirectoryRecord) error {
	event, err := domain.NewMutationEvent(
		domain.EventTypeRecordPublished,
		"directory_record",
		record.ID,
		domain.RecordPublishedPayload{RecordID: record.ID, Type: record.Type, Title: record.Title},
	)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event)
}

// PublishRecordRetracted emits the event for a record leaving
// PUBLISHED status.
func (p *Publisher) PublishRecordRetracted(ctx context.Context, id uuid.UUID, status domain.RecordStatus) error {
	event, err := domain.NewMutationEvent(
		domain.EventTypeRecordRetracted,
		"directory_record",
		id,
		domain.RecordRetractedPayload{RecordID: id, Status: status},
	)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event)
}

// PublishRecordDeleted emits the event for a removed record.
func (p *Publisher) PublishRecordDeleted(ctx context.Context, id uuid.UUID) error {
	event, err := domain.NewMutationEvent(
		domain.EventTypeRecordDeleted,
		"directory_record",
		id,
		domain.RecordRetractedPayload{RecordID: id},
	)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event)
}

// PublishArticleUpserted emits the event for a promoted article.
func (p *Publisher) PublishArticleUpserted(ctx context.Context, article *domain.Article) error {
	payload := domain.ArticleUpsertedPayload{ArticleID: article.ID, DOI: article.DOI}
	if article.Year != nil {
		payload.Year = *article.Year
	}
	event, err := domain.NewMutationEvent(domain.EventTypeArticleUpserted, "article", article.ID, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
