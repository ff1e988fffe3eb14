package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is an ingestion source: a chat, or a named manual-input bucket.
type Group struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TelegramID *int64    `json:"telegram_id,omitempty" db:"telegram_id"`
	Name       string    `json:"name" db:"name"`
	BotActive  bool      `json:"bot_active" db:"bot_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Message struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	GroupID            uuid.UUID  `json:"group_id" db:"group_id"`
	TelegramMessageID  *int64     `json:"telegram_message_id,omitempty" db:"telegram_message_id"`
	SenderTelegramID   *int64     `json:"sender_telegram_id,omitempty" db:"sender_telegram_id"`
	SenderName         *string    `json:"sender_name,omitempty" db:"sender_name"`
	Text               *string    `json:"text,omitempty" db:"text"`
	HasPhoto           bool       `json:"has_photo" db:"has_photo"`
	PhotoPath          *string    `json:"photo_path,omitempty" db:"photo_path"` // blob key
	Timestamp          *time.Time `json:"timestamp,omitempty" db:"timestamp"`
	ImportedFromBackup bool       `json:"imported_from_backup" db:"imported_from_backup"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// GroupSummary is a group with the timestamp of its newest message.
type GroupSummary struct {
	Group
	LastMessageAt *time.Time `json:"last_message_at"`
}

// MessageFilter selects messages for listing and text search. Zero fields
// do not filter.
type MessageFilter struct {
	GroupID       *uuid.UUID
	OnlyWithPhoto bool
	DateFrom      *time.Time
	DateTo        *time.Time
	// Text is a case-insensitive substring of the message text.
	Text   string
	Limit  int
	Offset int
}

// MessageRow is a message joined with its group's name.
type MessageRow struct {
	Message
	GroupName *string `json:"group_name"`
}
