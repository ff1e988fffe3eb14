package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Limmita2/FaseWatch/internal/identity"
)

// RunReconciler sweeps every interval until ctx is done. Orphaned points are
// deleted once they are older than the reconciler's grace period.
func RunReconciler(ctx context.Context, r *identity.Reconciler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := r.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("reconcile sweep", "error", err)
				}
				continue
			}
			slog.Info("reconcile sweep",
				"points", rep.PointsScanned,
				"faces", rep.FacesScanned,
				"suspects", rep.SuspectPoints,
				"orphans_deleted", rep.OrphansDeleted,
				"payloads_fixed", rep.PayloadsFixed,
				"faces_without_point", rep.FacesWithoutPoint,
			)
		}
	}
}
