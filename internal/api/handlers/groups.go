package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

type GroupLister interface {
	ListGroups(ctx context.Context) ([]models.GroupSummary, error)
}

type GroupHandler struct {
	groups  GroupLister
	curator *identity.Curator
}

func NewGroupHandler(groups GroupLister, curator *identity.Curator) *GroupHandler {
	return &GroupHandler{groups: groups, curator: curator}
}

// List returns every group, newest first, with its latest message time.
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.ListGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.GroupListResponse{Groups: make([]dto.GroupResponse, 0, len(groups)), Total: len(groups)}
	for _, g := range groups {
		r := dto.GroupResponse{
			ID:         g.ID,
			TelegramID: g.TelegramID,
			Name:       g.Name,
			BotActive:  g.BotActive,
			CreatedAt:  dto.FormatTime(g.CreatedAt),
		}
		if g.LastMessageAt != nil {
			ts := dto.FormatTime(*g.LastMessageAt)
			r.LastMessageAt = &ts
		}
		resp.Groups = append(resp.Groups, r)
	}
	c.JSON(http.StatusOK, resp)
}

// Delete removes a group with its messages, faces, vectors, crops and photos.
func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res, err := h.curator.DeleteGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse(res))
}
