package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

func TestReconciler_DeletesOrphanOnSecondSweep(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.record(t, unit(1, 0))
	orphan, err := e.index.Upsert(ctx, vectorindex.Point{
		Vector:  unit(0.1, 3),
		Payload: vectorindex.Payload{FaceID: uuid.New(), PersonID: uuid.New()},
	})
	require.NoError(t, err)

	rep, err := e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.PointsScanned)
	assert.Equal(t, 1, rep.SuspectPoints)
	assert.Zero(t, rep.OrphansDeleted)
	assert.Equal(t, 2, e.index.Len())

	e.advance(identity.DefaultOrphanGrace / 2)
	rep, err = e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.OrphansDeleted, "younger than the grace period")
	assert.Equal(t, 1, rep.SuspectPoints)

	e.advance(identity.DefaultOrphanGrace / 2)
	rep, err = e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.OrphansDeleted)
	_, ok := e.index.Payload(orphan)
	assert.False(t, ok)
	assert.Equal(t, 1, e.index.Len())
}

func TestReconciler_FixesPayloadDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.record(t, unit(1, 0))[0]
	require.NoError(t, e.index.SetPersonID(ctx, []uuid.UUID{*r.Face.PointID}, uuid.New()))

	rep, err := e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PayloadsFixed)

	p, ok := e.index.Payload(*r.Face.PointID)
	require.True(t, ok)
	assert.Equal(t, *r.Face.PersonID, p.PersonID)
}

func TestReconciler_ReportsFaceWithoutPoint(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.record(t, unit(1, 0))[0]
	require.NoError(t, e.index.Delete(ctx, []uuid.UUID{*r.Face.PointID}))

	rep, err := e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.FacesScanned)
	assert.Equal(t, 1, rep.FacesWithoutPoint)
}

func TestReconciler_CleanStoreNeedsNoRepairs(t *testing.T) {
	e := newEnv(t)
	e.record(t, unit(1, 0), unit(0.1, 2))

	rep, err := e.recon.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.PointsScanned)
	assert.Equal(t, 2, rep.FacesScanned)
	assert.Zero(t, rep.SuspectPoints)
	assert.Zero(t, rep.PayloadsFixed)
	assert.Zero(t, rep.FacesWithoutPoint)
}

func TestReconciler_SparesPointOfOpenPhotoTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.ConcurrentTx()
	entered, release := e.store.Hold("SetFaceVector")
	t.Cleanup(release)

	type result struct {
		faces []identity.FaceResult
		err   error
	}
	done := make(chan result, 1)
	taken := e.now
	go func() {
		faces, err := e.coord.RecordPhoto(ctx, identity.Photo{Timestamp: taken, Image: e.imgFrame},
			[]models.Observation{obs(unit(1, 0))})
		done <- result{faces, err}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("photo transaction never reached the held call")
	}
	require.Equal(t, 1, e.index.Len(), "point is written before the face row commits")

	rep, err := e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SuspectPoints)

	e.advance(time.Minute)
	rep, err = e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.OrphansDeleted)
	assert.Equal(t, 1, rep.SuspectPoints)
	assert.Equal(t, 1, e.index.Len())

	release()
	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("photo transaction did not finish")
	}
	require.NoError(t, res.err)
	require.Len(t, res.faces, 1)

	e.advance(identity.DefaultOrphanGrace)
	rep, err = e.recon.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.OrphansDeleted)
	assert.Zero(t, rep.SuspectPoints)
	_, ok := e.index.Payload(*res.faces[0].Face.PointID)
	assert.True(t, ok)
}

func TestReconciler_OrphanGraceOption(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := identity.NewReconciler(e.store, e.index,
		identity.WithOrphanGrace(10*time.Minute), identity.WithClock(func() time.Time { return e.now }))
	assert.Equal(t, 10*time.Minute, r.Grace())

	_, err := e.index.Upsert(ctx, vectorindex.Point{
		Vector:  unit(1, 0),
		Payload: vectorindex.Payload{FaceID: uuid.New(), PersonID: uuid.New()},
	})
	require.NoError(t, err)

	_, err = r.Sweep(ctx)
	require.NoError(t, err)
	e.advance(identity.DefaultOrphanGrace)
	rep, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.OrphansDeleted)

	e.advance(10 * time.Minute)
	rep, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.OrphansDeleted)
}
