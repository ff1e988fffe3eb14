package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

// Notifier receives events for live clients.
type Notifier interface {
	BroadcastEvent(event *dto.WSEvent)
}

type nopNotifier struct{}

func (nopNotifier) BroadcastEvent(*dto.WSEvent) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// respondError maps identity errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, identity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, identity.ErrAlreadyReviewed):
		status = http.StatusConflict
	case errors.Is(err, identity.ErrInvalidMerge), errors.Is(err, identity.ErrInvalidEmbedding):
		status = http.StatusBadRequest
	case errors.Is(err, identity.ErrUndecodable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, identity.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit/offset query parameters.
func pagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = 50, 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return 0, 0, false
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be non-negative"})
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
