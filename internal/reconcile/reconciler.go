package reconcile

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tilinna/clock"

	"github.com/dployr-io/sandbox/internal/ledger"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/models"
)

// Lister is the slice of the upstream client the sweeper needs.
type Lister interface {
	ListInstances(ctx context.Context) ([]models.InstanceRecord, error)
}

// Reconciler periodically diffs the ledger against the upstream listing.
// The ledger write and the matching upstream call are not atomic, so either
// side can drift; the sweep closes the gap. Records with no live upstream
// instance are dropped, live instances with no record are surfaced as a
// monitorable event and never auto-adopted.
type Reconciler struct {
	ledger   ledger.Ledger
	upstream Lister
	interval time.Duration
	logger   logging.Logger

	listMaxElapsed time.Duration
}

func New(led ledger.Ledger, up Lister, interval time.Duration, logger logging.Logger) *Reconciler {
	return &Reconciler{
		ledger:         led,
		upstream:       up,
		interval:       interval,
		logger:         logger,
		listMaxElapsed: 30 * time.Second,
	}
}

// Run sweeps on a fixed interval until ctx is canceled. The clock comes from
// the context so tests can drive it.
func (r *Reconciler) Run(ctx context.Context) {
	clck := clock.FromContext(ctx)
	tckr := clck.NewTicker(r.interval)
	defer tckr.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tckr.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs a single reconciliation pass. The upstream listing is
// retried with exponential backoff; this runs in the background and is not
// bound by the request path's no-retry policy.
func (r *Reconciler) Sweep(ctx context.Context) {
	var live []models.InstanceRecord
	op := func() error {
		var err error
		live, err = r.upstream.ListInstances(ctx)
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.listMaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		r.logger.Error("reconcile listing failed", "error", err.Error())
		return
	}
	tracked, err := r.ledger.List(ctx)
	if err != nil {
		r.logger.Error("reconcile ledger list failed", "error", err.Error())
		return
	}

	liveSet := make(map[string]struct{}, len(live))
	for _, rec := range live {
		liveSet[rec.ID] = struct{}{}
	}
	trackedSet := make(map[string]struct{}, len(tracked))
	stale := 0
	for _, rec := range tracked {
		trackedSet[rec.ID] = struct{}{}
		if _, ok := liveSet[rec.ID]; ok {
			continue
		}
		// tracked but gone upstream: drop the record
		r.logger.Info("reconcile_stale_record", "instanceId", rec.ID, "provider", rec.Provider)
		if err := r.ledger.Delete(ctx, rec.ID); err != nil {
			r.logger.Error("reconcile delete failed", "instanceId", rec.ID, "error", err.Error())
			continue
		}
		stale++
	}
	untracked := 0
	for _, rec := range live {
		if _, ok := trackedSet[rec.ID]; ok {
			continue
		}
		// live upstream but unknown to us: someone pays for this instance
		r.logger.Error("reconcile_untracked_instance", "instanceId", rec.ID, "provider", rec.Provider, "address", rec.Address)
		untracked++
	}
	r.logger.Debug("reconcile sweep complete", "live", len(live), "tracked", len(tracked), "stale", stale, "untracked", untracked)
}
