package dto

import "github.com/google/uuid"

type QueueEntryResponse struct {
	ID                uuid.UUID `json:"id"`
	FaceID            uuid.UUID `json:"face_id"`
	SuggestedPersonID uuid.UUID `json:"suggested_person_id"`
	Similarity        float32   `json:"similarity"`
	CreatedAt         string    `json:"created_at"`
}

type QueueListResponse struct {
	Entries []QueueEntryResponse `json:"entries"`
	Total   int                  `json:"total"`
}

type ReviewResponse struct {
	Status          string     `json:"status"`
	FaceID          uuid.UUID  `json:"face_id"`
	PersonID        uuid.UUID  `json:"person_id"`
	RemovedPersonID *uuid.UUID `json:"removed_person_id,omitempty"`
}
