package dto

import "github.com/google/uuid"

// WebSocket event types.
const (
	EventFaceResolved   = "face_resolved"
	EventReviewDecision = "review_decision"
	EventPersonsMerged  = "persons_merged"
)

// WSEvent is a WebSocket message for real-time delivery. Fields not relevant
// to Type are omitted.
type WSEvent struct {
	Type            string     `json:"type"`
	FaceID          *uuid.UUID `json:"face_id,omitempty"`
	PersonID        *uuid.UUID `json:"person_id,omitempty"`
	MessageID       *uuid.UUID `json:"message_id,omitempty"`
	QueueEntryID    *uuid.UUID `json:"queue_entry_id,omitempty"`
	RemovedPersonID *uuid.UUID `json:"removed_person_id,omitempty"`
	// Kind is the resolution kind or the review status.
	Kind      string  `json:"kind,omitempty"`
	Score     float32 `json:"score,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// Concerns reports whether the event mentions personID.
func (e *WSEvent) Concerns(personID uuid.UUID) bool {
	return (e.PersonID != nil && *e.PersonID == personID) ||
		(e.RemovedPersonID != nil && *e.RemovedPersonID == personID)
}
