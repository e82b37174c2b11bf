package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/ocabr/observatory/internal/reconcile"
)

// AffiliationReconciler is the reconciler subset the activity uses.
type AffiliationReconciler interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Stats, error)
}

// ReconcileActivities runs the affiliation resolution passes.
type ReconcileActivities struct {
	reconciler AffiliationReconciler
}

// NewReconcileActivities creates the reconciliation activity set.
func NewReconcileActivities(reconciler AffiliationReconciler) *ReconcileActivities {
	return &ReconcileActivities{reconciler: reconciler}
}

// ReconcileInput is the serializable input for Reconcile.
type ReconcileInput struct {
	// Force re-resolves affiliations that already carry links.
	Force bool
}

// ReconcileResult is the serializable result of one run.
type ReconcileResult struct {
	Resolved           map[string]int
	UnresolvedOfficial int64
	UnresolvedCountry  int64
}

// Reconcile runs all passes in order. The passes are idempotent, so a
// retried activity converges to the same state.
func (a *ReconcileActivities) Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error) {
	stats, err := a.reconciler.Run(ctx, reconcile.Options{Force: input.Force})
	if err != nil {
		return nil, err
	}

	activity.GetLogger(ctx).Info("reconciliation finished",
		"unresolvedOfficial", stats.UnresolvedOfficial,
		"unresolvedCountry", stats.UnresolvedCountry)

	return &ReconcileResult{
		Resolved:           stats.Resolved,
		UnresolvedOfficial: stats.UnresolvedOfficial,
		UnresolvedCountry:  stats.UnresolvedCountry,
	}, nil
}
