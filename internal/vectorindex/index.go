// Package vectorindex is a typed client over the nearest-neighbour store that
// holds one point per face. It carries no identity logic.
package vectorindex

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Payload is denormalized onto every point so search results can be
// enriched without a relational join.
type Payload struct {
	FaceID    uuid.UUID  `json:"face_id"`
	PersonID  uuid.UUID  `json:"person_id"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	GroupID   *uuid.UUID `json:"group_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload Payload
}

// Hit is one query result. Score is raw cosine similarity in [-1, 1].
type Hit struct {
	PointID uuid.UUID
	Score   float32
	Payload Payload
}

type Index interface {
	// Upsert stores the point and returns its id; a nil ID gets a fresh one.
	Upsert(ctx context.Context, p Point) (uuid.UUID, error)
	// Query returns up to k hits ordered by descending score. Hits scoring
	// below minScore are dropped; pass a negative value to keep everything.
	Query(ctx context.Context, vector []float32, k int, minScore float64) ([]Hit, error)
	// SetPersonID rewrites the person_id payload field of the given points.
	SetPersonID(ctx context.Context, pointIDs []uuid.UUID, personID uuid.UUID) error
	Delete(ctx context.Context, pointIDs []uuid.UUID) error
	// Scan pages through points in id order, starting after the given id.
	// Returned points carry payloads only.
	Scan(ctx context.Context, after uuid.UUID, limit int) ([]Point, error)
	Ping(ctx context.Context) error
}
