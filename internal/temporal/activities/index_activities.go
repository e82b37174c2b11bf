package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

// BulkIndexer is the index sync subset the rebuild activity uses.
type BulkIndexer interface {
	EnsureIndices(ctx context.Context) error
	BulkIndex(ctx context.Context, records []*domain.DirectoryRecord) error
}

// IndexActivities rebuilds the directory search index from the
// canonical store.
type IndexActivities struct {
	records repository.DirectoryRepository
	indexer BulkIndexer
}

// NewIndexActivities creates the index rebuild activity set.
func NewIndexActivities(records repository.DirectoryRepository, indexer BulkIndexer) *IndexActivities {
	return &IndexActivities{records: records, indexer: indexer}
}

// EnsureIndices creates missing indices with their mappings.
func (a *IndexActivities) EnsureIndices(ctx context.Context) error {
	return a.indexer.EnsureIndices(ctx)
}

// RebuildIndexInput is the serializable input for RebuildIndexPage.
type RebuildIndexInput struct {
	// UpdatedAfter restricts the rebuild to records touched after this
	// time. Zero value walks everything.
	UpdatedAfter time.Time

	// Offset and Limit page through the published records.
	Offset int
	Limit  int
}

// RebuildIndexResult reports one bulk-indexed page.
type RebuildIndexResult struct {
	Indexed int
	// Done is true once the page came back short, meaning the listing
	// is exhausted.
	Done bool
}

// RebuildIndexPage bulk-indexes one page of published records.
func (a *IndexActivities) RebuildIndexPage(ctx context.Context, input RebuildIndexInput) (*RebuildIndexResult, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 500
	}

	filter := repository.DirectoryFilter{
		Status: []domain.RecordStatus{domain.RecordStatusPublished},
		Limit:  limit,
		Offset: input.Offset,
	}
	if !input.UpdatedAfter.IsZero() {
		after := input.UpdatedAfter
		filter.UpdatedAfter = &after
	}

	records, _, err := a.records.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &RebuildIndexResult{Done: true}, nil
	}

	if err := a.indexer.BulkIndex(ctx, records); err != nil {
		return nil, err
	}

	activity.GetLogger(ctx).Info("index page rebuilt", "indexed", len(records), "offset", input.Offset)
	return &RebuildIndexResult{Indexed: len(records), Done: len(records) < limit}, nil
}
