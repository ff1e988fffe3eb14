package identity_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
)

func TestCurator_MergeRetargetsPendingSuggestions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	known, _, r := borderline(t, e)
	other := personOf(t, e.record(t, unit(0, 7))[0])

	_, err := e.curator.Merge(ctx, known, other)
	require.NoError(t, err)

	entry, ok := e.store.QueueEntry(*r.QueueEntryID)
	require.True(t, ok)
	assert.Equal(t, other, entry.SuggestedPersonID)
	_, ok = e.store.Person(known)
	assert.False(t, ok)

	detail, err := e.curator.GetPerson(ctx, other)
	require.NoError(t, err)
	assert.Len(t, detail.Faces, 2)
}

func TestCurator_MergeErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := personOf(t, e.record(t, unit(1, 0))[0])

	_, err := e.curator.Merge(ctx, a, a)
	assert.ErrorIs(t, err, identity.ErrInvalidMerge)

	_, err = e.curator.Merge(ctx, a, uuid.New())
	assert.ErrorIs(t, err, identity.ErrNotFound)
	_, err = e.curator.Merge(ctx, uuid.New(), a)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	_, ok := e.store.Person(a)
	assert.True(t, ok)
}

func TestCurator_DeletePerson(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	known, provisional, r := borderline(t, e)
	knownFace := e.store.Faces()[0]
	require.Equal(t, known, *knownFace.PersonID)

	res, err := e.curator.DeletePerson(ctx, known)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FacesDeleted)
	assert.Equal(t, 1, res.PointsDeleted)
	assert.Equal(t, 1, res.CropsDeleted)

	persons, faces, queue := e.store.Counts()
	assert.Equal(t, 1, persons)
	assert.Equal(t, 1, faces)
	assert.Zero(t, queue, "suggestions of the deleted person are removed")

	assert.Equal(t, 1, e.index.Len())
	_, ok := e.index.Payload(*knownFace.PointID)
	assert.False(t, ok)
	assert.False(t, e.blobs.Has(*knownFace.CropPath))
	assert.True(t, e.blobs.Has(identity.CropKey(r.Face.ID)))

	_, ok = e.store.Person(provisional)
	assert.True(t, ok)

	_, err = e.curator.DeletePerson(ctx, known)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCurator_DeletePersonKeepsCommitWhenBlobDeleteFails(t *testing.T) {
	e := newEnv(t)
	a := personOf(t, e.record(t, unit(1, 0))[0])
	e.blobs.DeleteError = errBoom

	res, err := e.curator.DeletePerson(context.Background(), a)
	require.NoError(t, err)
	assert.Zero(t, res.CropsDeleted)
	_, ok := e.store.Person(a)
	assert.False(t, ok)
	assert.Zero(t, e.index.Len())
}

func TestCurator_DeleteGroup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.store.AddGroup(models.Group{Name: "chat"})
	m := e.store.AddMessage(models.Message{GroupID: g.ID, HasPhoto: true})

	res, err := e.coord.RecordPhoto(ctx, identity.Photo{MessageID: &m.ID, Image: e.imgFrame},
		[]models.Observation{obs(unit(1, 0)), obs(unit(0.1, 4))})
	require.NoError(t, err)
	require.Len(t, res, 2)

	del, err := e.curator.DeleteGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, del.FacesDeleted)

	persons, faces, _ := e.store.Counts()
	assert.Equal(t, 2, persons)
	assert.Zero(t, faces)
	assert.Zero(t, e.index.Len())
	msg, err := e.store.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, msg)

	_, err = e.curator.DeleteGroup(ctx, g.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCurator_UpdatePerson(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := personOf(t, e.record(t, unit(1, 0))[0])

	name, confirmed := "Alex", true
	p, err := e.curator.UpdatePerson(ctx, a, &name, &confirmed)
	require.NoError(t, err)
	assert.Equal(t, "Alex", *p.DisplayName)
	assert.True(t, p.Confirmed)

	list, err := e.curator.ListPersons(ctx, models.PersonFilter{Confirmed: &confirmed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].FaceCount)

	_, err = e.curator.UpdatePerson(ctx, uuid.New(), &name, nil)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCurator_MergeDropsSuggestionsSettledByMerge(t *testing.T) {
	for _, tc := range []struct {
		name string
		// into reports whether the provisional person absorbs the known one.
		into bool
	}{
		{name: "provisional into suggested"},
		{name: "suggested into provisional", into: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			known, provisional, r := borderline(t, e)

			source, target := provisional, known
			if tc.into {
				source, target = known, provisional
			}
			_, err := e.curator.Merge(ctx, source, target)
			require.NoError(t, err)

			face, ok := e.store.Face(r.Face.ID)
			require.True(t, ok)
			assert.Equal(t, target, *face.PersonID)
			_, ok = e.store.QueueEntry(*r.QueueEntryID)
			assert.False(t, ok, "entry suggesting the face's own person is dropped")

			pending, err := e.review.ListPending(ctx, 10, 0)
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestCurator_DeleteGroupRemovesPhotos(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.store.AddGroup(models.Group{Name: "chat"})
	other := e.store.AddGroup(models.Group{Name: "other"})

	var kept string
	var photos []string
	for i, gid := range []uuid.UUID{g.ID, g.ID, other.ID} {
		key := fmt.Sprintf("photos/%d.jpg", i)
		require.NoError(t, e.blobs.Put(ctx, key, []byte("jpeg"), "image/jpeg"))
		e.store.AddMessage(models.Message{GroupID: gid, HasPhoto: true, PhotoPath: &key})
		if gid == g.ID {
			photos = append(photos, key)
		} else {
			kept = key
		}
	}
	e.store.AddMessage(models.Message{GroupID: g.ID})

	del, err := e.curator.DeleteGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, del.PhotosDeleted)
	for _, key := range photos {
		assert.False(t, e.blobs.Has(key), key)
	}
	assert.True(t, e.blobs.Has(kept))
}

func TestCurator_DeleteMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.store.AddGroup(models.Group{Name: "chat"})
	key := "photos/m.jpg"
	require.NoError(t, e.blobs.Put(ctx, key, []byte("jpeg"), "image/jpeg"))
	m := e.store.AddMessage(models.Message{GroupID: g.ID, HasPhoto: true, PhotoPath: &key})
	sibling := e.store.AddMessage(models.Message{GroupID: g.ID})

	res, err := e.coord.RecordPhoto(ctx, identity.Photo{MessageID: &m.ID, Image: e.imgFrame},
		[]models.Observation{obs(unit(1, 0)), obs(unit(0.1, 4))})
	require.NoError(t, err)
	require.Len(t, res, 2)

	del, err := e.curator.DeleteMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, del.FacesDeleted)
	assert.Equal(t, 2, del.PointsDeleted)
	assert.Equal(t, 2, del.CropsDeleted)
	assert.Equal(t, 1, del.PhotosDeleted)

	persons, faces, _ := e.store.Counts()
	assert.Equal(t, 2, persons, "persons outlive their faces")
	assert.Zero(t, faces)
	assert.Zero(t, e.index.Len())
	assert.Empty(t, e.blobs.Keys())

	_, ok := e.store.Message(m.ID)
	assert.False(t, ok)
	_, ok = e.store.Message(sibling.ID)
	assert.True(t, ok)

	_, err = e.curator.DeleteMessage(ctx, m.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCurator_DeleteMessageRollsBackWhenStoreFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.store.AddGroup(models.Group{Name: "chat"})
	m := e.store.AddMessage(models.Message{GroupID: g.ID, HasPhoto: true})
	_, err := e.coord.RecordPhoto(ctx, identity.Photo{MessageID: &m.ID, Image: e.imgFrame},
		[]models.Observation{obs(unit(1, 0))})
	require.NoError(t, err)

	e.store.Fail("DeleteMessage", errBoom)
	_, err = e.curator.DeleteMessage(ctx, m.ID)
	require.ErrorIs(t, err, errBoom)

	_, faces, _ := e.store.Counts()
	assert.Equal(t, 1, faces)
	assert.Equal(t, 1, e.index.Len(), "points survive a rolled back delete")
	_, ok := e.store.Message(m.ID)
	assert.True(t, ok)
}
