package identity_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

func TestResolver_Decide(t *testing.T) {
	r := identity.NewResolver(0.75, 0.60)
	person := uuid.New()

	tests := []struct {
		name   string
		cand   *identity.Candidate
		action identity.Action
	}{
		{"no candidate", nil, identity.NewPerson},
		{"well above threshold", &identity.Candidate{PersonID: person, Score: 0.93}, identity.AutoLink},
		{"exactly at threshold", &identity.Candidate{PersonID: person, Score: 0.75}, identity.AutoLink},
		{"just below threshold", &identity.Candidate{PersonID: person, Score: 0.7499}, identity.NewPersonWithReview},
		{"at review floor", &identity.Candidate{PersonID: person, Score: 0.60}, identity.NewPersonWithReview},
		{"below review floor", &identity.Candidate{PersonID: person, Score: 0.40}, identity.NewPerson},
		{"zero score", &identity.Candidate{PersonID: person, Score: 0}, identity.NewPerson},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Decide(tt.cand)
			assert.Equal(t, tt.action, d.Action)
			switch d.Action {
			case identity.AutoLink:
				assert.Equal(t, person, d.PersonID)
			case identity.NewPersonWithReview:
				assert.Equal(t, person, d.Suggested)
			}
		})
	}
}

func TestResolver_FloorAtThresholdDisablesReview(t *testing.T) {
	r := identity.NewResolver(0.75, 0.75)
	for _, s := range []float32{0.0, 0.5, 0.74} {
		assert.Equal(t, identity.NewPerson, r.Decide(&identity.Candidate{Score: s}).Action)
	}
	assert.Equal(t, identity.AutoLink, r.Decide(&identity.Candidate{Score: 0.75}).Action)
}

func TestMatcher_EmptyIndex(t *testing.T) {
	m := identity.NewMatcher(vectorindex.NewMemory(testDim), testDim)

	c, err := m.FindBestCandidate(context.Background(), unit(1, 0))
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestMatcher_InvalidEmbedding(t *testing.T) {
	m := identity.NewMatcher(vectorindex.NewMemory(testDim), testDim)

	_, err := m.FindBestCandidate(context.Background(), []float32{1, 2, 3})
	assert.ErrorIs(t, err, identity.ErrInvalidEmbedding)
	assert.True(t, identity.IsPermanent(err))
}

func TestMatcher_UnavailableIndex(t *testing.T) {
	idx := &failingIndex{Index: vectorindex.NewMemory(testDim), queryErr: errBoom}
	m := identity.NewMatcher(idx, testDim)

	_, err := m.FindBestCandidate(context.Background(), unit(1, 0))
	assert.ErrorIs(t, err, identity.ErrUnavailable)
	assert.False(t, identity.IsPermanent(err))
}

func TestMatcher_ClampsNegativeScore(t *testing.T) {
	idx := vectorindex.NewMemory(testDim)
	person := uuid.New()
	v := unit(1, 0)
	_, err := idx.Upsert(context.Background(), vectorindex.Point{Vector: v, Payload: vectorindex.Payload{PersonID: person}})
	require.NoError(t, err)

	opposite := make([]float32, testDim)
	opposite[0] = -1
	c, err := identity.NewMatcher(idx, testDim).FindBestCandidate(context.Background(), opposite)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, person, c.PersonID)
	assert.Zero(t, c.Score)
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, identity.IsPermanent(nil))
	assert.False(t, identity.IsPermanent(errBoom))
	assert.True(t, identity.IsPermanent(identity.ErrNotFound))
	assert.True(t, identity.IsPermanent(identity.ErrUndecodable))
	assert.False(t, identity.IsPermanent(identity.ErrUnavailable))
}
