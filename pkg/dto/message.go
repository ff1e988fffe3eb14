package dto

import "github.com/google/uuid"

type MessageListItem struct {
	ID                 uuid.UUID `json:"id"`
	GroupID            uuid.UUID `json:"group_id"`
	GroupName          *string   `json:"group_name"`
	SenderName         *string   `json:"sender_name"`
	Text               *string   `json:"text"`
	HasPhoto           bool      `json:"has_photo"`
	PhotoPath          *string   `json:"photo_path"`
	Timestamp          *string   `json:"timestamp"`
	ImportedFromBackup bool      `json:"imported_from_backup"`
}

type MessageListResponse struct {
	Messages []MessageListItem `json:"messages"`
	Total    int               `json:"total"`
}

// TextSearchResult is a message whose text matched, with its neighbours.
type TextSearchResult struct {
	MessageListItem
	Context *MessageContext `json:"context"`
}

type TextSearchResponse struct {
	Query   string             `json:"query"`
	Total   int                `json:"total"`
	Results []TextSearchResult `json:"results"`
}

type GroupResponse struct {
	ID            uuid.UUID `json:"id"`
	TelegramID    *int64    `json:"telegram_id"`
	Name          string    `json:"name"`
	BotActive     bool      `json:"bot_active"`
	LastMessageAt *string   `json:"last_message_at"`
	CreatedAt     string    `json:"created_at"`
}

type GroupListResponse struct {
	Groups []GroupResponse `json:"groups"`
	Total  int             `json:"total"`
}
