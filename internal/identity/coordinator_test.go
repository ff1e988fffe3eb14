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

func TestRecordPhoto_LinkThenSplitThenMerge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := e.record(t, unit(1, 0))[0]
	assert.Equal(t, identity.NewPerson, first.Decision.Action)
	personA := personOf(t, first)

	second := e.record(t, unit(0.82, 1))[0]
	assert.Equal(t, identity.AutoLink, second.Decision.Action)
	assert.InDelta(t, 0.82, second.Decision.Score, 1e-4)
	assert.Equal(t, personA, personOf(t, second))

	third := e.record(t, unit(0.40, 2))[0]
	assert.Equal(t, identity.NewPerson, third.Decision.Action)
	personC := personOf(t, third)
	assert.NotEqual(t, personA, personC)

	persons, faces, queue := e.store.Counts()
	assert.Equal(t, 2, persons)
	assert.Equal(t, 3, faces)
	assert.Zero(t, queue)

	res, err := e.curator.Merge(ctx, personC, personA)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.FacesMoved)

	_, ok := e.store.Person(personC)
	assert.False(t, ok)
	for _, f := range e.store.Faces() {
		require.NotNil(t, f.PersonID)
		assert.Equal(t, personA, *f.PersonID)
		p, ok := e.index.Payload(*f.PointID)
		require.True(t, ok)
		assert.Equal(t, personA, p.PersonID)
	}
}

func TestRecordPhoto_EveryFaceHasPersonAndPoint(t *testing.T) {
	e := newEnv(t)

	res := e.record(t, unit(1, 0), unit(0.1, 3), unit(0.2, 4))

	for _, r := range res {
		f, ok := e.store.Face(r.Face.ID)
		require.True(t, ok)
		require.NotNil(t, f.PersonID)
		require.NotNil(t, f.PointID)
		_, ok = e.store.Person(*f.PersonID)
		assert.True(t, ok)

		p, ok := e.index.Payload(*f.PointID)
		require.True(t, ok)
		assert.Equal(t, f.ID, p.FaceID)
		assert.Equal(t, *f.PersonID, p.PersonID)

		require.NotNil(t, f.CropPath)
		assert.Equal(t, identity.CropKey(f.ID), *f.CropPath)
		assert.True(t, e.blobs.Has(*f.CropPath))
	}
	assert.Equal(t, 3, e.index.Len())
}

func TestRecordPhoto_BorderlineScoreQueuesOneEntry(t *testing.T) {
	e := newEnv(t)

	personA := personOf(t, e.record(t, unit(1, 0))[0])
	r := e.record(t, unit(0.65, 1))[0]

	assert.Equal(t, identity.NewPersonWithReview, r.Decision.Action)
	provisional := personOf(t, r)
	assert.NotEqual(t, personA, provisional)
	require.NotNil(t, r.QueueEntryID)

	entries := e.store.QueueEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, *r.QueueEntryID, entries[0].ID)
	assert.Equal(t, r.Face.ID, entries[0].FaceID)
	assert.Equal(t, personA, entries[0].SuggestedPersonID)
	assert.Equal(t, models.StatusPending, entries[0].Status)
	assert.InDelta(t, 0.65, entries[0].Similarity, 1e-4)

	ev := r.Event(time.Now())
	assert.Equal(t, models.ResolutionReview, ev.Kind)
	assert.Equal(t, provisional, ev.PersonID)
}

func TestRecordPhoto_RollbackCompensatesVectorPoints(t *testing.T) {
	e := newEnv(t)
	e.store.FailOnCall("SetFaceVector", 2, errBoom)

	_, err := e.coord.RecordPhoto(context.Background(), identity.Photo{Image: e.imgFrame},
		[]models.Observation{obs(unit(1, 0)), obs(unit(0.1, 5))})
	require.ErrorIs(t, err, errBoom)

	persons, faces, queue := e.store.Counts()
	assert.Zero(t, persons)
	assert.Zero(t, faces)
	assert.Zero(t, queue)
	assert.Zero(t, e.index.Len())
	assert.Empty(t, e.blobs.Keys())
}

func TestRecordPhoto_IndexUpsertFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	idx := &failingIndex{Index: e.index, upsertErr: errBoom}
	coord := identity.NewCoordinator(e.store, idx, e.blobs, identity.NewMatcher(idx, testDim),
		identity.NewResolver(0.75, 0.60), nil)

	_, err := coord.RecordPhoto(context.Background(), identity.Photo{}, []models.Observation{obs(unit(1, 0))})
	require.ErrorIs(t, err, identity.ErrUnavailable)
	assert.False(t, identity.IsPermanent(err))

	persons, faces, _ := e.store.Counts()
	assert.Zero(t, persons)
	assert.Zero(t, faces)
}

func TestRecordPhoto_CropFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	e.cropErr = errBoom

	r := e.record(t, unit(1, 0))[0]
	f, ok := e.store.Face(r.Face.ID)
	require.True(t, ok)
	assert.Nil(t, f.CropPath)
	assert.NotNil(t, f.PointID)

	e.cropErr = nil
	e.blobs.PutError = errBoom
	r = e.record(t, unit(0.1, 6))[0]
	f, ok = e.store.Face(r.Face.ID)
	require.True(t, ok)
	assert.Nil(t, f.CropPath)
}

func TestRecordPhoto_MissingMessage(t *testing.T) {
	e := newEnv(t)
	missing := uuid.New()

	_, err := e.coord.RecordPhoto(context.Background(), identity.Photo{MessageID: &missing},
		[]models.Observation{obs(unit(1, 0))})
	require.ErrorIs(t, err, identity.ErrNotFound)
	assert.True(t, identity.IsPermanent(err))
}

func TestRecordPhoto_PayloadCarriesMessageAndGroup(t *testing.T) {
	e := newEnv(t)
	g := e.store.AddGroup(models.Group{Name: "chat"})
	m := e.store.AddMessage(models.Message{GroupID: g.ID, HasPhoto: true})

	res, err := e.coord.RecordPhoto(context.Background(), identity.Photo{MessageID: &m.ID, Image: e.imgFrame},
		[]models.Observation{obs(unit(1, 0))})
	require.NoError(t, err)

	p, ok := e.index.Payload(*res[0].Face.PointID)
	require.True(t, ok)
	require.NotNil(t, p.MessageID)
	require.NotNil(t, p.GroupID)
	assert.Equal(t, m.ID, *p.MessageID)
	assert.Equal(t, g.ID, *p.GroupID)
}

func TestRecordPhoto_StaleCandidateTreatedAsNone(t *testing.T) {
	e := newEnv(t)
	_, err := e.index.Upsert(context.Background(), vectorindex.Point{
		Vector:  unit(1, 0),
		Payload: vectorindex.Payload{FaceID: uuid.New(), PersonID: uuid.New()},
	})
	require.NoError(t, err)

	r := e.record(t, unit(1, 0))[0]
	assert.Equal(t, identity.NewPerson, r.Decision.Action)
	_, ok := e.store.Person(personOf(t, r))
	assert.True(t, ok)
}

func TestRecordPhoto_NoFaces(t *testing.T) {
	e := newEnv(t)

	res, err := e.coord.RecordPhoto(context.Background(), identity.Photo{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}
