package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/domain"
)

// Fanout is an index collaborator that performs the direct sync call
// and emits the matching mutation event. The direct call keeps the
// index fresh for the writer's own reads; the event lets detached
// consumers (and a full replay) converge.
type Fanout struct {
	syncer    Syncer
	publisher *Publisher
	logger    zerolog.Logger
}

// NewFanout wraps a syncer with event emission. The publisher may be
// nil when eventing is disabled; the fanout then degenerates to the
// direct call.
func NewFanout(syncer Syncer, publisher *Publisher, logger zerolog.Logger) *Fanout {
	return &Fanout{
		syncer:    syncer,
		publisher: publisher,
		logger:    logger.With().Str("component", "index-fanout").Logger(),
	}
}

// IndexRecord upserts the document and publishes the mutation. A
// publish failure is logged, not returned; the index write already
// happened and the listener replays from the broker, not from us.
func (f *Fanout) IndexRecord(ctx context.Context, record *domain.DirectoryRecord) error {
	if err := f.syncer.IndexRecord(ctx, record); err != nil {
		return err
	}
	if f.publisher == nil {
		return nil
	}
	if err := f.publisher.PublishRecordPublished(ctx, record); err != nil {
		f.logger.Error().Err(err).
			Str("record_id", record.ID.String()).
			Msg("failed to publish record mutation event")
	}
	return nil
}

// DeleteRecord removes the document and publishes the mutation.
func (f *Fanout) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	if err := f.syncer.DeleteRecord(ctx, id); err != nil {
		return err
	}
	if f.publisher == nil {
		return nil
	}
	if err := f.publisher.PublishRecordDeleted(ctx, id); err != nil {
		f.logger.Error().Err(err).
			Str("record_id", id.String()).
			Msg("failed to publish record mutation event")
	}
	return nil
}

// ModerationNotifier queues moderation notifications on the broker
// instead of sending them directly; a detached worker owns delivery.
type ModerationNotifier struct {
	publisher *Publisher
}

// NewModerationNotifier creates a broker-backed notifier.
func NewModerationNotifier(publisher *Publisher) *ModerationNotifier {
	return &ModerationNotifier{publisher: publisher}
}

// NotifyModerationPending publishes the pending-moderation event.
func (n *ModerationNotifier) NotifyModerationPending(ctx context.Context, record *domain.DirectoryRecord) error {
	event, err := domain.NewMutationEvent(
		domain.EventTypeModerationPending,
		"directory_record",
		record.ID,
		domain.RecordPublishedPayload{RecordID: record.ID, Type: record.Type, Title: record.Title},
	)
	if err != nil {
		return fmt.Errorf("building moderation event: %w", err)
	}
	return n.publisher.Publish(ctx, event)
}
