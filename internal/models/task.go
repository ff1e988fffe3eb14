package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoTask is the message published to NATS for worker processing.
type PhotoTask struct {
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	GroupID   *uuid.UUID `json:"group_id,omitempty"`
	PhotoKey  string     `json:"photo_key"` // blob key of the original photo
	Timestamp time.Time  `json:"timestamp"`
}

type ResolutionKind string

const (
	ResolutionAutoLinked ResolutionKind = "auto_linked"
	ResolutionNewPerson  ResolutionKind = "new_person"
	ResolutionReview     ResolutionKind = "review"
)

// ResolutionEvent is published after a photo's faces are committed.
type ResolutionEvent struct {
	FaceID       uuid.UUID      `json:"face_id"`
	PersonID     uuid.UUID      `json:"person_id"`
	MessageID    *uuid.UUID     `json:"message_id,omitempty"`
	Kind         ResolutionKind `json:"kind"`
	Score        float32        `json:"score,omitempty"`
	QueueEntryID *uuid.UUID     `json:"queue_entry_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}
