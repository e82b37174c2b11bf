package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ocabr/observatory/internal/promote"
)

// EntityPromoter is the promoter subset the promotion activities use.
type EntityPromoter interface {
	PromoteArticles(ctx context.Context, opts promote.Options) (*promote.Stats, error)
	PromoteInstitutions(ctx context.Context, opts promote.Options) (*promote.Stats, error)
	PromoteJournals(ctx context.Context, opts promote.Options) (*promote.Stats, error)
}

// PromoteActivities turns raw snapshots into canonical entities.
type PromoteActivities struct {
	promoter EntityPromoter
}

// NewPromoteActivities creates the promotion activity set.
func NewPromoteActivities(promoter EntityPromoter) *PromoteActivities {
	return &PromoteActivities{promoter: promoter}
}

// PromoteInput is the serializable input for the promotion activities.
type PromoteInput struct {
	// Update re-promotes raw rows whose canonical counterpart exists.
	Update bool

	// Since restricts the pass to raw rows updated after this time.
	// Zero value promotes the whole backlog.
	Since time.Time

	// LoopSize is the batch size. Zero uses the promoter default.
	LoopSize int
}

// PromoteStats is the serializable result of one promotion pass.
type PromoteStats struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
}

func (i PromoteInput) options() promote.Options {
	opts := promote.Options{Update: i.Update, LoopSize: i.LoopSize}
	if !i.Since.IsZero() {
		since := i.Since
		opts.Since = &since
	}
	return opts
}

func promoteStats(stats *promote.Stats) *PromoteStats {
	return &PromoteStats{
		Processed: stats.Processed,
		Created:   stats.Created,
		Updated:   stats.Updated,
		Skipped:   stats.Skipped,
		Failed:    stats.Failed,
	}
}

// PromoteArticles runs one article promotion pass.
func (a *PromoteActivities) PromoteArticles(ctx context.Context, input PromoteInput) (*PromoteStats, error) {
	stats, err := a.promoter.PromoteArticles(ctx, input.options())
	if err != nil {
		return nil, err
	}
	activity.GetLogger(ctx).Info("articles promoted",
		"processed", stats.Processed, "created", stats.Created, "failed", stats.Failed)
	return promoteStats(stats), nil
}

// PromoteInstitutions runs one institution promotion pass.
func (a *PromoteActivities) PromoteInstitutions(ctx context.Context, input PromoteInput) (*PromoteStats, error) {
	stats, err := a.promoter.PromoteInstitutions(ctx, input.options())
	if err != nil {
		return nil, err
	}
	return promoteStats(stats), nil
}

// PromoteJournals runs one journal promotion pass.
func (a *PromoteActivities) PromoteJournals(ctx context.Context, input PromoteInput) (*PromoteStats, error) {
	stats, err := a.promoter.PromoteJournals(ctx, input.options())
	if err != nil {
		return nil, err
	}
	return promoteStats(stats), nil
}
