package models

import (
	"time"

	"github.com/google/uuid"
)

type IdentificationStatus string

const (
	StatusPending   IdentificationStatus = "pending"
	StatusConfirmed IdentificationStatus = "confirmed"
	StatusRejected  IdentificationStatus = "rejected"
)

// QueueEntry is a deferred identity decision awaiting a reviewer.
type QueueEntry struct {
	ID                uuid.UUID            `json:"id" db:"id"`
	FaceID            uuid.UUID            `json:"face_id" db:"face_id"`
	SuggestedPersonID uuid.UUID            `json:"suggested_person_id" db:"suggested_person_id"`
	Similarity        float32              `json:"similarity" db:"similarity"`
	Status            IdentificationStatus `json:"status" db:"status"`
	ReviewedBy        *string              `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt        *time.Time           `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
}
