package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

const messageContextRadius = 2

// MessageLister pages through messages with their group names.
type MessageLister interface {
	ListMessages(ctx context.Context, f models.MessageFilter) ([]models.MessageRow, error)
}

type MessageStore interface {
	MessageReader
	MessageLister
}

type MessageHandler struct {
	store   MessageStore
	curator *identity.Curator
}

func NewMessageHandler(store MessageStore, curator *identity.Curator) *MessageHandler {
	return &MessageHandler{store: store, curator: curator}
}

// List supports group_id, only_with_photo, date_from and date_to plus
// limit/offset. Dates are RFC 3339 or YYYY-MM-DD.
func (h *MessageHandler) List(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter := models.MessageFilter{Limit: limit, Offset: offset}
	if v := c.Query("group_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
			return
		}
		filter.GroupID = &id
	}
	if v := c.Query("only_with_photo"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid only_with_photo"})
			return
		}
		filter.OnlyWithPhoto = b
	}
	if filter.DateFrom, ok = queryTime(c, "date_from"); !ok {
		return
	}
	if filter.DateTo, ok = queryTime(c, "date_to"); !ok {
		return
	}

	rows, err := h.store.ListMessages(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.MessageListResponse{Messages: make([]dto.MessageListItem, 0, len(rows))}
	for _, r := range rows {
		resp.Messages = append(resp.Messages, messageListItem(r))
	}
	resp.Total = len(resp.Messages)
	c.JSON(http.StatusOK, resp)
}

// Context returns a message with two neighbours on each side in its group.
func (h *MessageHandler) Context(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	msg, err := h.store.GetMessage(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	mc, err := buildMessageContext(ctx, h.store, msg, messageContextRadius)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mc)
}

// Delete removes a message with its faces, vectors, crops and photo.
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res, err := h.curator.DeleteMessage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse(res))
}

func queryTime(c *gin.Context, param string) (*time.Time, bool) {
	v := c.Query(param)
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
	return nil, false
}

// buildMessageContext loads the group name and up to radius neighbours on each
// side of msg. Messages without a timestamp get no neighbours.
func buildMessageContext(ctx context.Context, r MessageReader, msg *models.Message, radius int) (*dto.MessageContext, error) {
	mc := &dto.MessageContext{
		Before:  []dto.MessageResponse{},
		Message: messageResponse(*msg),
		After:   []dto.MessageResponse{},
	}
	group, err := r.GetGroup(ctx, msg.GroupID)
	if err != nil {
		return nil, err
	}
	if group != nil {
		mc.GroupName = &group.Name
	}
	if msg.Timestamp == nil {
		return mc, nil
	}

	around, err := r.MessageContext(ctx, msg, radius)
	if err != nil {
		return nil, err
	}
	before := true
	for _, m := range around {
		switch {
		case m.ID == msg.ID:
			before = false
		case before:
			mc.Before = append(mc.Before, messageResponse(m))
		default:
			mc.After = append(mc.After, messageResponse(m))
		}
	}
	return mc, nil
}

func messageResponse(m models.Message) dto.MessageResponse {
	r := dto.MessageResponse{
		ID:         m.ID,
		Text:       m.Text,
		HasPhoto:   m.HasPhoto,
		PhotoPath:  m.PhotoPath,
		SenderName: m.SenderName,
	}
	if m.Timestamp != nil {
		ts := dto.FormatTime(*m.Timestamp)
		r.Timestamp = &ts
	}
	return r
}

func messageListItem(r models.MessageRow) dto.MessageListItem {
	item := dto.MessageListItem{
		ID:                 r.ID,
		GroupID:            r.GroupID,
		GroupName:          r.GroupName,
		SenderName:         r.SenderName,
		Text:               r.Text,
		HasPhoto:           r.HasPhoto,
		PhotoPath:          r.PhotoPath,
		ImportedFromBackup: r.ImportedFromBackup,
	}
	if r.Timestamp != nil {
		ts := dto.FormatTime(*r.Timestamp)
		item.Timestamp = &ts
	}
	return item
}
