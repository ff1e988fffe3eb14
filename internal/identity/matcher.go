package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

// Candidate is the closest stored face to a new observation.
type Candidate struct {
	PersonID uuid.UUID
	FaceID   uuid.UUID
	PointID  uuid.UUID
	// Score is cosine similarity clamped to [0, 1].
	Score float32
}

// Match is one face search result.
type Match struct {
	PointID   uuid.UUID
	FaceID    uuid.UUID
	PersonID  uuid.UUID
	MessageID *uuid.UUID
	GroupID   *uuid.UUID
	Score     float32
}

// Matcher finds nearest stored faces. It has no opinion on thresholds.
type Matcher struct {
	index vectorindex.Index
	dim   int
}

func NewMatcher(index vectorindex.Index, dim int) *Matcher {
	return &Matcher{index: index, dim: dim}
}

// FindBestCandidate returns the single nearest neighbour, or nil when the
// index holds no points. Index failures wrap ErrUnavailable.
func (m *Matcher) FindBestCandidate(ctx context.Context, embedding []float32) (*Candidate, error) {
	if err := m.validate(embedding); err != nil {
		return nil, err
	}
	hits, err := m.index.Query(ctx, embedding, 1, -1)
	if err != nil {
		return nil, fmt.Errorf("find best candidate: %w: %w", ErrUnavailable, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	h := hits[0]
	return &Candidate{
		PersonID: h.Payload.PersonID,
		FaceID:   h.Payload.FaceID,
		PointID:  h.PointID,
		Score:    clampScore(h.Score),
	}, nil
}

// Search returns up to topK faces scoring at least threshold (0..1).
func (m *Matcher) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]Match, error) {
	if err := m.validate(embedding); err != nil {
		return nil, err
	}
	hits, err := m.index.Query(ctx, embedding, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("search faces: %w: %w", ErrUnavailable, err)
	}
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, Match{
			PointID:   h.PointID,
			FaceID:    h.Payload.FaceID,
			PersonID:  h.Payload.PersonID,
			MessageID: h.Payload.MessageID,
			GroupID:   h.Payload.GroupID,
			Score:     clampScore(h.Score),
		})
	}
	return matches, nil
}

func (m *Matcher) validate(embedding []float32) error {
	if len(embedding) != m.dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidEmbedding, len(embedding), m.dim)
	}
	return nil
}

func clampScore(s float32) float32 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
