package dto

import "github.com/google/uuid"

type MessageResponse struct {
	ID         uuid.UUID `json:"id"`
	Text       *string   `json:"text"`
	HasPhoto   bool      `json:"has_photo"`
	PhotoPath  *string   `json:"photo_path"`
	Timestamp  *string   `json:"timestamp"`
	SenderName *string   `json:"sender_name"`
}

// MessageContext is a matched message with its neighbours in the group.
type MessageContext struct {
	GroupName *string           `json:"group_name"`
	Before    []MessageResponse `json:"before"`
	Message   MessageResponse   `json:"message"`
	After     []MessageResponse `json:"after"`
}

type SearchMatch struct {
	// Similarity is a percentage rounded to one decimal.
	Similarity float64         `json:"similarity"`
	PersonID   *uuid.UUID      `json:"person_id"`
	FaceID     uuid.UUID       `json:"face_id"`
	CropPath   *string         `json:"crop_path"`
	PhotoPath  *string         `json:"photo_path"`
	Context    *MessageContext `json:"context"`
}

type FaceSearchResult struct {
	FaceIndex int           `json:"face_index"`
	BBox      [4]float32    `json:"bbox"`
	Matches   []SearchMatch `json:"matches"`
}

type SearchResponse struct {
	FacesDetected     int                `json:"faces_detected"`
	RequiresSelection bool               `json:"requires_selection"`
	Results           []FaceSearchResult `json:"results"`
}

type InputResponse struct {
	MessageID   uuid.UUID `json:"message_id"`
	GroupID     uuid.UUID `json:"group_id"`
	GroupName   string    `json:"group_name"`
	PhotoPath   string    `json:"photo_path"`
	Text        string    `json:"text"`
	FacesQueued bool      `json:"faces_queued"`
}
