package identity_test

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/storage/mock"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

const testDim = 8

var errBoom = errors.New("boom")

type env struct {
	store    *mock.Store
	index    *vectorindex.Memory
	blobs    *mock.BlobStore
	matcher  *identity.Matcher
	coord    *identity.Coordinator
	review   *identity.ReviewQueue
	curator  *identity.Curator
	recon    *identity.Reconciler
	cropErr  error
	imgFrame image.Image
	// now is the reconciler's clock.
	now time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    mock.NewStore(),
		index:    vectorindex.NewMemory(testDim),
		blobs:    mock.NewBlobStore(),
		imgFrame: image.NewRGBA(image.Rect(0, 0, 64, 64)),
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	e.matcher = identity.NewMatcher(e.index, testDim)
	crop := func(image.Image, [4]float32) ([]byte, error) {
		if e.cropErr != nil {
			return nil, e.cropErr
		}
		return []byte("jpeg"), nil
	}
	e.coord = identity.NewCoordinator(e.store, e.index, e.blobs, e.matcher, identity.NewResolver(0.75, 0.60), crop)
	e.review = identity.NewReviewQueue(e.store, e.index)
	e.curator = identity.NewCurator(e.store, e.index, e.blobs)
	e.recon = identity.NewReconciler(e.store, e.index, identity.WithClock(func() time.Time { return e.now }))
	return e
}

func (e *env) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

// unit returns a unit vector whose cosine with axis 0 is cos, with the
// remainder placed on the given axis.
func unit(cos float64, axis int) []float32 {
	v := make([]float32, testDim)
	v[0] = float32(cos)
	if axis > 0 {
		v[axis] = float32(math.Sqrt(1 - cos*cos))
	}
	return v
}

func obs(v []float32) models.Observation {
	return models.Observation{BBox: [4]float32{4, 4, 20, 20}, Embedding: v, Confidence: 0.99}
}

func (e *env) record(t *testing.T, vs ...[]float32) []identity.FaceResult {
	t.Helper()
	observations := make([]models.Observation, 0, len(vs))
	for _, v := range vs {
		observations = append(observations, obs(v))
	}
	res, err := e.coord.RecordPhoto(context.Background(), identity.Photo{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Image:     e.imgFrame,
	}, observations)
	require.NoError(t, err)
	require.Len(t, res, len(vs))
	return res
}

func personOf(t *testing.T, r identity.FaceResult) uuid.UUID {
	t.Helper()
	require.NotNil(t, r.Face.PersonID)
	return *r.Face.PersonID
}

// failingIndex wraps an index and fails selected operations.
type failingIndex struct {
	vectorindex.Index
	queryErr  error
	upsertErr error
	setErr    error
}

func (f *failingIndex) Query(ctx context.Context, v []float32, k int, minScore float64) ([]vectorindex.Hit, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.Index.Query(ctx, v, k, minScore)
}

func (f *failingIndex) Upsert(ctx context.Context, p vectorindex.Point) (uuid.UUID, error) {
	if f.upsertErr != nil {
		return uuid.Nil, f.upsertErr
	}
	return f.Index.Upsert(ctx, p)
}

func (f *failingIndex) SetPersonID(ctx context.Context, ids []uuid.UUID, personID uuid.UUID) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Index.SetPersonID(ctx, ids, personID)
}
