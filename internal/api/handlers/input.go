package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/storage"
	"github.com/Limmita2/FaseWatch/internal/vision"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

const (
	defaultInputGroup = "Manual input"
	manualSender      = "Manual input"
	// formOverhead is the room left in a request body for form fields and
	// multipart framing around the file.
	formOverhead = 1 << 20
)

// InputStore creates the rows behind a manual upload.
type InputStore interface {
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	EnsureGroup(ctx context.Context, name string) (*models.Group, error)
	CreateMessage(ctx context.Context, m *models.Message) error
}

// TaskPublisher enqueues photo tasks for the workers.
type TaskPublisher interface {
	PublishPhoto(ctx context.Context, task models.PhotoTask) error
}

type InputHandler struct {
	store InputStore
	blobs identity.BlobStore
	tasks TaskPublisher
	now   func() time.Time
}

func NewInputHandler(store InputStore, blobs identity.BlobStore, tasks TaskPublisher) *InputHandler {
	return &InputHandler{store: store, blobs: blobs, tasks: tasks, now: time.Now}
}

// Upload stores a photo with optional text as a new message and queues it
// for face processing. Form fields: photo, text, group_id, group_name.
func (h *InputHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	data, ok := readUpload(c, "photo")
	if !ok {
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty file"})
		return
	}
	if _, err := vision.DecodeImage(data); err != nil {
		respondError(c, err)
		return
	}

	group, ok := h.resolveGroup(c)
	if !ok {
		return
	}

	now := h.now().UTC()
	msg := &models.Message{
		ID:       uuid.New(),
		GroupID:  group.ID,
		HasPhoto: true,
	}
	sender := manualSender
	msg.SenderName = &sender
	msg.Timestamp = &now
	text := c.PostForm("text")
	if text != "" {
		msg.Text = &text
	}

	key := storage.PhotoKey(group.ID, msg.ID, now)
	msg.PhotoPath = &key
	if err := h.blobs.Put(ctx, key, data, "image/jpeg"); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.CreateMessage(ctx, msg); err != nil {
		if derr := h.blobs.DeleteObjects(context.WithoutCancel(ctx), []string{key}); derr != nil {
			slog.Warn("remove orphaned upload", "key", key, "error", derr)
		}
		respondError(c, err)
		return
	}

	queued := true
	task := models.PhotoTask{MessageID: &msg.ID, GroupID: &group.ID, PhotoKey: key, Timestamp: now}
	if err := h.tasks.PublishPhoto(ctx, task); err != nil {
		slog.Error("queue uploaded photo", "message_id", msg.ID, "error", err)
		queued = false
	}

	c.JSON(http.StatusCreated, dto.InputResponse{
		MessageID:   msg.ID,
		GroupID:     group.ID,
		GroupName:   group.Name,
		PhotoPath:   key,
		Text:        text,
		FacesQueued: queued,
	})
}

// resolveGroup uses group_id when it names an existing group, otherwise the
// group called group_name, created on demand.
func (h *InputHandler) resolveGroup(c *gin.Context) (*models.Group, bool) {
	ctx := c.Request.Context()
	if v := c.PostForm("group_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
			return nil, false
		}
		g, err := h.store.GetGroup(ctx, id)
		if err != nil {
			respondError(c, err)
			return nil, false
		}
		if g != nil {
			return g, true
		}
	}

	name := c.DefaultPostForm("group_name", defaultInputGroup)
	g, err := h.store.EnsureGroup(ctx, name)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return g, true
}

// readUpload reads a multipart file field. Files over maxUploadBytes are
// answered with 413 rather than truncated.
func readUpload(c *gin.Context, field string) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+formOverhead)
	tooLarge := func() ([]byte, bool) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("%s exceeds %d bytes", field, maxUploadBytes)})
		return nil, false
	}

	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return tooLarge()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file required"})
		return nil, false
	}
	defer file.Close()
	if header.Size > maxUploadBytes {
		return tooLarge()
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read " + field + " failed"})
		return nil, false
	}
	return data, true
}
