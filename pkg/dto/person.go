package dto

import (
	"time"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339

// FormatTime renders timestamps the way every response does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type PersonResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName *string   `json:"display_name"`
	Confirmed   bool      `json:"confirmed"`
	FaceCount   int       `json:"face_count"`
	CreatedAt   string    `json:"created_at"`
}

type PersonListResponse struct {
	Persons []PersonResponse `json:"persons"`
	Total   int              `json:"total"`
}

type FaceResponse struct {
	ID         uuid.UUID  `json:"id"`
	PersonID   *uuid.UUID `json:"person_id"`
	MessageID  *uuid.UUID `json:"message_id,omitempty"`
	BBox       [4]float32 `json:"bbox"`
	Confidence float32    `json:"confidence"`
	CropPath   *string    `json:"crop_path,omitempty"`
	CreatedAt  string     `json:"created_at"`
}

type PersonDetailResponse struct {
	PersonResponse
	Faces []FaceResponse `json:"faces"`
}

// UpdatePersonRequest is a partial update; absent fields are left alone.
type UpdatePersonRequest struct {
	DisplayName *string `json:"display_name"`
	Confirmed   *bool   `json:"confirmed"`
}

type MergePersonsRequest struct {
	SourceID uuid.UUID `json:"source_id" binding:"required"`
	TargetID uuid.UUID `json:"target_id" binding:"required"`
}

type MergePersonsResponse struct {
	TargetID   uuid.UUID `json:"target_id"`
	FacesMoved int       `json:"faces_moved"`
}

type DeleteResponse struct {
	Status        string `json:"status"`
	FacesDeleted  int    `json:"faces_deleted"`
	PointsDeleted int    `json:"points_deleted"`
	CropsDeleted  int    `json:"crops_deleted"`
	PhotosDeleted int    `json:"photos_deleted"`
}
