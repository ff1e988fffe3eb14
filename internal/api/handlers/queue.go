package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/auth"
	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

type QueueHandler struct {
	review *identity.ReviewQueue
	notify Notifier
}

func NewQueueHandler(review *identity.ReviewQueue, notify Notifier) *QueueHandler {
	return &QueueHandler{review: review, notify: notifierOrNop(notify)}
}

// List returns pending entries, newest first.
func (h *QueueHandler) List(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	entries, err := h.review.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.QueueEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.QueueEntryResponse{
			ID:                e.ID,
			FaceID:            e.FaceID,
			SuggestedPersonID: e.SuggestedPersonID,
			Similarity:        e.Similarity,
			CreatedAt:         dto.FormatTime(e.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, dto.QueueListResponse{Entries: resp, Total: len(resp)})
}

func (h *QueueHandler) Confirm(c *gin.Context) {
	h.decide(c, h.review.Confirm)
}

func (h *QueueHandler) Reject(c *gin.Context) {
	h.decide(c, h.review.Reject)
}

type reviewFunc func(ctx context.Context, entryID uuid.UUID, reviewer string) (*identity.ReviewOutcome, error)

func (h *QueueHandler) decide(c *gin.Context, review reviewFunc) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := review(c.Request.Context(), id, auth.Reviewer(c))
	if err != nil {
		respondError(c, err)
		return
	}

	status := string(out.Entry.Status)
	h.notify.BroadcastEvent(&dto.WSEvent{
		Type:            dto.EventReviewDecision,
		FaceID:          &out.FaceID,
		PersonID:        &out.PersonID,
		QueueEntryID:    &out.Entry.ID,
		RemovedPersonID: out.RemovedPersonID,
		Kind:            status,
		Timestamp:       dto.FormatTime(time.Now()),
	})

	c.JSON(http.StatusOK, dto.ReviewResponse{
		Status:          status,
		FaceID:          out.FaceID,
		PersonID:        out.PersonID,
		RemovedPersonID: out.RemovedPersonID,
	})
}
