// Package directory manages curated directory records through their
// moderation lifecycle and keeps the search index in step with status
// changes.
package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
	"github.com/ocabr/observatory/internal/repository"
)

// Indexer mirrors record mutations into the search index. Only
// published records are indexed; every other status removes the
// document.
type Indexer interface {
	IndexRecord(ctx context.Context, record *domain.DirectoryRecord) error
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}

// Notifier queues moderation notifications for staff reviewers.
type Notifier interface {
	NotifyModerationPending(ctx context.Context, record *domain.DirectoryRecord) error
}

// Service coordinates directory record writes, moderation transitions,
// notifications and index sync.
type Service struct {
	records    repository.DirectoryRepository
	indexer    Indexer
	notifier   Notifier
	moderation config.ModerationConfig
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewService creates a directory service. Indexer and notifier may be
// nil when the deployment runs without search or email.
func NewService(
	records repository.DirectoryRepository,
	indexer Indexer,
	notifier Notifier,
	moderation config.ModerationConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		records:    records,
		indexer:    indexer,
		notifier:   notifier,
		moderation: moderation,
		logger:     logger.With().Str("component", "directory").Logger(),
		metrics:    metrics,
	}
}

// Create inserts a new record. Non-staff creators start in moderation
// when it is enabled; staff creators start in WIP.
func (s *Service) Create(ctx context.Context, record *domain.DirectoryRecord, staff bool) (*domain.DirectoryRecord, error) {
	if record == nil {
		return nil, domain.NewValidationError("record", "record cannot be nil")
	}
	if record.Title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Status = domain.InitialStatus(staff, s.moderation.Enabled)

	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("creating directory record: %w", err)
	}

	s.afterWrite(ctx, record)
	return record, nil
}

// Update persists edits to an existing record. A non-staff save while
// moderation is enabled moves the record back into moderation, even
// when it was published.
func (s *Service) Update(ctx context.Context, record *domain.DirectoryRecord, staff bool) (*domain.DirectoryRecord, error) {
	if record == nil {
		return nil, domain.NewValidationError("record", "record cannot be nil")
	}

	existing, err := s.records.GetByID(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	record.Status = existing.Status

	if !staff && s.moderation.Enabled && record.Status != domain.RecordStatusToModerate {
		if err := record.Transition(domain.RecordStatusToModerate, staff); err != nil {
			return nil, err
		}
	}

	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("updating directory record: %w", err)
	}

	s.afterWrite(ctx, record)
	return record, nil
}

// SetStatus applies an explicit moderation transition, enforcing the
// state machine rules.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to domain.RecordStatus, staff bool, updatedBy string) (*domain.DirectoryRecord, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := record.Transition(to, staff); err != nil {
		return nil, err
	}

	if err := s.records.UpdateStatus(ctx, id, record.Status, updatedBy); err != nil {
		return nil, fmt.Errorf("updating record status: %w", err)
	}

	s.afterWrite(ctx, record)
	return record, nil
}

// Get retrieves a record with links and variant details.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.DirectoryRecord, error) {
	return s.records.GetByID(ctx, id)
}

// List retrieves records matching the filter.
func (s *Service) List(ctx context.Context, filter repository.DirectoryFilter) ([]*domain.DirectoryRecord, int64, error) {
	return s.records.List(ctx, filter)
}

// Delete removes a record and its index document.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.deleteFromIndex(ctx, id)
	return nil
}

// afterWrite runs the side effects of a persisted mutation. Both index
// sync and notification failures are logged, never surfaced; the
// database write already succeeded and must not be rolled back by a
// collaborator outage.
func (s *Service) afterWrite(ctx context.Context, record *domain.DirectoryRecord) {
	if record.Status == domain.RecordStatusToModerate {
		s.notifyModeration(ctx, record)
	}

	if record.Status == domain.RecordStatusPublished {
		s.indexRecord(ctx, record)
		return
	}
	s.deleteFromIndex(ctx, record.ID)
}

func (s *Service) notifyModeration(ctx context.Context, record *domain.DirectoryRecord) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyModerationPending(ctx, record); err != nil {
		s.logger.Error().Err(err).
			Str("record_id", record.ID.String()).
			Str("type", string(record.Type)).
			Msg("failed to queue moderation notification")
	}
}

func (s *Service) indexRecord(ctx context.Context, record *domain.DirectoryRecord) {
	if s.indexer == nil {
		return
	}
	err := s.indexer.IndexRecord(ctx, record)
	s.recordIndexSync("index", err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("record_id", record.ID.String()).
			Msg("failed to index directory record")
	}
}

func (s *Service) deleteFromIndex(ctx context.Context, id uuid.UUID) {
	if s.indexer == nil {
		return
	}
	err := s.indexer.DeleteRecord(ctx, id)
	s.recordIndexSync("delete", err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("record_id", id.String()).
			Msg("failed to delete directory record from index")
	}
}

func (s *Service) recordIndexSync(operation string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordIndexSync(operation, result)
}
