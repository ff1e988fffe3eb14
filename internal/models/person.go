package models

import (
	"time"

	"github.com/google/uuid"
)

// Person is a resolved identity cluster.
type Person struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DisplayName *string   `json:"display_name,omitempty" db:"display_name"`
	Confirmed   bool      `json:"confirmed" db:"confirmed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PersonSummary is a Person with its face count, as listed by the API.
type PersonSummary struct {
	Person
	FaceCount int `json:"face_count" db:"face_count"`
}

// Face is one detected face instance. PersonID is only nil inside the
// transaction that creates the row; PointID likewise.
type Face struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	PersonID   *uuid.UUID `json:"person_id" db:"person_id"`
	MessageID  *uuid.UUID `json:"message_id,omitempty" db:"message_id"`
	BBox       [4]float32 `json:"bbox" db:"bbox"` // x1, y1, x2, y2
	Confidence float32    `json:"confidence" db:"confidence"`
	CropPath   *string    `json:"crop_path,omitempty" db:"crop_path"`
	PointID    *uuid.UUID `json:"qdrant_point_id,omitempty" db:"qdrant_point_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Observation is one face as produced by the detector/embedder.
type Observation struct {
	BBox       [4]float32
	Embedding  []float32
	Confidence float32
}

// PersonFilter narrows person listings. Zero Limit means the store default.
type PersonFilter struct {
	Confirmed *bool
	Limit     int
	Offset    int
}
