package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/observability"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

const defaultReconcilePage = 256

// DefaultOrphanGrace is how long a point must stay without a face before it
// is deleted. Photo jobs are redelivered after two minutes without an ack, so
// no recording transaction outlives it.
const DefaultOrphanGrace = 2 * time.Minute

// Report summarizes one reconciliation sweep.
type Report struct {
	PointsScanned     int `json:"points_scanned"`
	FacesScanned      int `json:"faces_scanned"`
	SuspectPoints     int `json:"suspect_points"`
	OrphansDeleted    int `json:"orphans_deleted"`
	PayloadsFixed     int `json:"payloads_fixed"`
	FacesWithoutPoint int `json:"faces_without_point"`
}

// Reconciler repairs drift between the relational store and the vector
// index. A point without a matching face is deleted only when consecutive
// sweeps saw it orphaned and the first of them is at least the grace period
// old, so points of in-flight photo jobs survive however often it runs.
type Reconciler struct {
	store    Store
	index    vectorindex.Index
	pageSize int
	grace    time.Duration
	now      func() time.Time

	mu sync.Mutex
	// suspects maps orphaned points to the time a sweep first saw them.
	suspects map[uuid.UUID]time.Time
}

type ReconcilerOption func(*Reconciler)

// WithOrphanGrace overrides DefaultOrphanGrace.
func WithOrphanGrace(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.grace = d
		}
	}
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(store Store, index vectorindex.Index, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:    store,
		index:    index,
		pageSize: defaultReconcilePage,
		grace:    DefaultOrphanGrace,
		now:      time.Now,
		suspects: make(map[uuid.UUID]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Grace is the minimum age of an orphaned point before it is deleted.
func (r *Reconciler) Grace() time.Duration {
	return r.grace
}

func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rep Report
	now := r.now()
	seen := make(map[uuid.UUID]struct{})
	suspects := make(map[uuid.UUID]time.Time)

	after := uuid.Nil
	for {
		points, err := r.index.Scan(ctx, after, r.pageSize)
		if err != nil {
			return rep, fmt.Errorf("scan vector points: %w: %w", ErrUnavailable, err)
		}
		if len(points) == 0 {
			break
		}
		after = points[len(points)-1].ID
		rep.PointsScanned += len(points)

		if err := r.checkPoints(ctx, now, points, seen, suspects, &rep); err != nil {
			return rep, err
		}
		if len(points) < r.pageSize {
			break
		}
	}
	r.suspects = suspects
	rep.SuspectPoints = len(suspects)

	faceAfter := uuid.Nil
	for {
		var faces []models.Face
		err := r.store.InTx(ctx, func(tx Tx) error {
			var err error
			faces, err = tx.ListFacesAfter(ctx, faceAfter, r.pageSize)
			return err
		})
		if err != nil {
			return rep, fmt.Errorf("scan faces: %w", err)
		}
		if len(faces) == 0 {
			break
		}
		faceAfter = faces[len(faces)-1].ID
		rep.FacesScanned += len(faces)

		for _, f := range faces {
			if f.PointID != nil {
				if _, ok := seen[*f.PointID]; ok {
					continue
				}
			}
			rep.FacesWithoutPoint++
			observability.ReconcileRepairs.WithLabelValues("face_without_point").Inc()
			slog.Warn("face has no vector point", "face_id", f.ID)
		}
		if len(faces) < r.pageSize {
			break
		}
	}

	slog.Info("reconcile sweep finished",
		"points", rep.PointsScanned, "faces", rep.FacesScanned,
		"orphans_deleted", rep.OrphansDeleted, "payloads_fixed", rep.PayloadsFixed,
		"faces_without_point", rep.FacesWithoutPoint)
	return rep, nil
}

func (r *Reconciler) checkPoints(ctx context.Context, now time.Time, points []vectorindex.Point, seen map[uuid.UUID]struct{}, suspects map[uuid.UUID]time.Time, rep *Report) error {
	faces := make(map[uuid.UUID]*models.Face, len(points))
	err := r.store.InTx(ctx, func(tx Tx) error {
		for _, p := range points {
			f, err := tx.GetFace(ctx, p.Payload.FaceID)
			if err != nil {
				return err
			}
			faces[p.ID] = f
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load faces for points: %w", err)
	}

	var orphans []uuid.UUID
	drift := make(map[uuid.UUID][]uuid.UUID)
	for _, p := range points {
		f := faces[p.ID]
		if f == nil || f.PointID == nil || *f.PointID != p.ID {
			first, again := r.suspects[p.ID]
			switch {
			case !again:
				suspects[p.ID] = now
			case now.Sub(first) >= r.grace:
				orphans = append(orphans, p.ID)
			default:
				suspects[p.ID] = first
			}
			continue
		}
		seen[p.ID] = struct{}{}
		if f.PersonID != nil && *f.PersonID != p.Payload.PersonID {
			drift[*f.PersonID] = append(drift[*f.PersonID], p.ID)
		}
	}

	if len(orphans) > 0 {
		if err := r.index.Delete(ctx, orphans); err != nil {
			return fmt.Errorf("delete orphan points: %w: %w", ErrUnavailable, err)
		}
		rep.OrphansDeleted += len(orphans)
		observability.ReconcileRepairs.WithLabelValues("orphan_point").Add(float64(len(orphans)))
	}
	for personID, ids := range drift {
		if err := r.index.SetPersonID(ctx, ids, personID); err != nil {
			return fmt.Errorf("fix point payload: %w: %w", ErrUnavailable, err)
		}
		rep.PayloadsFixed += len(ids)
		observability.ReconcileRepairs.WithLabelValues("payload_drift").Add(float64(len(ids)))
	}
	return nil
}
