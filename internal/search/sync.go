package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
)

// IndexSync keeps the directory index aligned with the canonical
// store. It satisfies the directory service's Indexer contract:
// published records upsert, everything else deletes. Writes refresh
// immediately so moderators see their change on the next search.
type IndexSync struct {
	client    *Client
	index     string
	batchSize int
	scrollTTL time.Duration
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewIndexSync builds the sync service for the configured directory
// index.
func NewIndexSync(client *Client, cfg config.SearchConfig, logger zerolog.Logger, metrics *observability.Metrics) *IndexSync {
	batchSize := cfg.BulkBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	scrollTTL := cfg.ScrollTTL
	if scrollTTL <= 0 {
		scrollTTL = 2 * time.Minute
	}
	index := cfg.DirectoryIndex
	if index == "" {
		index = "directory_records"
	}
	return &IndexSync{
		client:    client,
		index:     index,
		batchSize: batchSize,
		scrollTTL: scrollTTL,
		logger:    logger.With().Str("component", "index-sync").Logger(),
		metrics:   metrics,
	}
}

// IndexRecord upserts a published record and deletes any other status,
// so a republish and an unpublish go through the same call.
func (s *IndexSync) IndexRecord(ctx context.Context, record *domain.DirectoryRecord) error {
	if record.Status != domain.RecordStatusPublished {
		return s.DeleteRecord(ctx, record.ID)
	}
	doc := DirectoryDocument(record)
	if err := s.client.IndexDocument(ctx, s.index, record.ID.String(), doc, true); err != nil {
		return fmt.Errorf("syncing record %s: %w", record.ID, err)
	}
	return nil
}

// DeleteRecord removes a record's document. Deleting a record that was
// never indexed is a no-op.
func (s *IndexSync) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	if err := s.client.DeleteDocument(ctx, s.index, id.String(), true); err != nil {
		return fmt.Errorf("removing record %s from index: %w", id, err)
	}
	return nil
}

// DirectoryDocument flattens a record into its index shape: the common
// directory fields plus the variant-specific block.
func DirectoryDocument(record *domain.DirectoryRecord) map[string]any {
	doc := map[string]any{
		"id":                         record.ID.String(),
		"type":                       string(record.Type),
		"title":                      record.Title,
		"link":                       record.Link,
		"description":                record.Description,
		"classification":             record.Classification,
		"record_status":              string(record.Status),
		"institutional_contribution": record.InstitutionalContribution,
		"institution_ids":            uuidStrings(record.InstitutionIDs),
		"location_ids":               uuidStrings(record.LocationIDs),
		"thematic_area_ids":          uuidStrings(record.ThematicAreaIDs),
		"tag_ids":                    uuidStrings(record.TagIDs),
	}
	if record.ActionID != nil {
		doc["action_id"] = record.ActionID.String()
	}
	if record.PracticeID != nil {
		doc["practice_id"] = record.PracticeID.String()
	}

	switch {
	case record.Education != nil:
		doc["level"] = record.Education.Level
		doc["modality"] = record.Education.Modality
		putDate(doc, "start_date", record.Education.StartDate)
		putDate(doc, "end_date", record.Education.EndDate)
	case record.Event != nil:
		doc["attendance"] = string(record.Event.Attendance)
		doc["organization_ids"] = uuidStrings(record.Event.OrganizationIDs)
		putDate(doc, "start_date", record.Event.StartDate)
		putDate(doc, "end_date", record.Event.EndDate)
	case record.Infrastructure != nil:
		doc["acronym"] = record.Infrastructure.Acronym
		doc["url"] = record.Infrastructure.URL
	case record.Policy != nil:
		doc["is_mandatory"] = record.Policy.IsMandatory
		putDate(doc, "adoption_date", record.Policy.AdoptionDate)
	}
	return doc
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func putDate(doc map[string]any, key string, date *time.Time) {
	if date != nil {
		doc[key] = date.UTC().Format("2006-01-02")
	}
}

// BulkIndex writes documents in batches. Each batch flushes before the
// next is built, bounding memory on full rebuilds.
func (s *IndexSync) BulkIndex(ctx context.Context, records []*domain.DirectoryRecord) error {
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.flushBatch(ctx, records[start:end]); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordBulkIndexed(end - start)
		}
	}
	return nil
}

func (s *IndexSync) flushBatch(ctx context.Context, records []*domain.DirectoryRecord) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, record := range records {
		action := map[string]any{
			"index": map[string]any{"_index": s.index, "_id": record.ID.String()},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encoding bulk action: %w", err)
		}
		if err := enc.Encode(DirectoryDocument(record)); err != nil {
			return fmt.Errorf("encoding bulk document: %w", err)
		}
	}
	if body.Len() == 0 {
		return nil
	}
	if err := s.client.Bulk(ctx, &body); err != nil {
		return fmt.Errorf("flushing bulk batch: %w", err)
	}
	return nil
}

// WalkIndex streams every document of the directory index through fn
// using a scroll. The scroll is cleared on every exit path, including
// handler errors.
func (s *IndexSync) WalkIndex(ctx context.Context, fn func(id string, source json.RawMessage) error) error {
	body := map[string]any{
		"size":  s.batchSize,
		"query": map[string]any{"match_all": map[string]any{}},
	}
	res, err := s.client.SearchScroll(ctx, s.index, body, s.scrollTTL)
	if err != nil {
		return fmt.Errorf("opening index walk: %w", err)
	}
	scrollID := res.ScrollID
	defer func() { s.client.ClearScroll(ctx, scrollID) }()

	for len(res.Hits.Hits) > 0 {
		for _, hit := range res.Hits.Hits {
			if err := fn(hit.ID, hit.Source); err != nil {
				return err
			}
		}
		res, err = s.client.Scroll(ctx, scrollID, s.scrollTTL)
		if err != nil {
			return fmt.Errorf("continuing index walk: %w", err)
		}
		if res.ScrollID != "" {
			scrollID = res.ScrollID
		}
	}
	return nil
}
