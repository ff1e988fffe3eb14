package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

type PersonHandler struct {
	curator *identity.Curator
	notify  Notifier
}

func NewPersonHandler(curator *identity.Curator, notify Notifier) *PersonHandler {
	return &PersonHandler{curator: curator, notify: notifierOrNop(notify)}
}

func personResponse(p models.Person, faceCount int) dto.PersonResponse {
	return dto.PersonResponse{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Confirmed:   p.Confirmed,
		FaceCount:   faceCount,
		CreatedAt:   dto.FormatTime(p.CreatedAt),
	}
}

func faceResponse(f models.Face) dto.FaceResponse {
	return dto.FaceResponse{
		ID:         f.ID,
		PersonID:   f.PersonID,
		MessageID:  f.MessageID,
		BBox:       f.BBox,
		Confidence: f.Confidence,
		CropPath:   f.CropPath,
		CreatedAt:  dto.FormatTime(f.CreatedAt),
	}
}

// List supports ?confirmed=true|false plus limit/offset.
func (h *PersonHandler) List(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter := models.PersonFilter{Limit: limit, Offset: offset}
	if v := c.Query("confirmed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirmed"})
			return
		}
		filter.Confirmed = &b
	}

	persons, err := h.curator.ListPersons(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for _, p := range persons {
		resp = append(resp, personResponse(p.Person, p.FaceCount))
	}
	c.JSON(http.StatusOK, dto.PersonListResponse{Persons: resp, Total: len(resp)})
}

func (h *PersonHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.curator.GetPerson(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	faces := make([]dto.FaceResponse, 0, len(detail.Faces))
	for _, f := range detail.Faces {
		faces = append(faces, faceResponse(f))
	}
	c.JSON(http.StatusOK, dto.PersonDetailResponse{
		PersonResponse: personResponse(detail.Person, len(detail.Faces)),
		Faces:          faces,
	})
}

func (h *PersonHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.curator.UpdatePerson(c.Request.Context(), id, req.DisplayName, req.Confirmed); err != nil {
		respondError(c, err)
		return
	}
	detail, err := h.curator.GetPerson(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, personResponse(detail.Person, len(detail.Faces)))
}

// Merge moves every face of source into target and deletes source.
func (h *PersonHandler) Merge(c *gin.Context) {
	var req dto.MergePersonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.curator.Merge(c.Request.Context(), req.SourceID, req.TargetID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notify.BroadcastEvent(&dto.WSEvent{
		Type:            dto.EventPersonsMerged,
		PersonID:        &res.TargetID,
		RemovedPersonID: &req.SourceID,
		Timestamp:       dto.FormatTime(time.Now()),
	})
	c.JSON(http.StatusOK, dto.MergePersonsResponse{TargetID: res.TargetID, FacesMoved: int(res.FacesMoved)})
}

func (h *PersonHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res, err := h.curator.DeletePerson(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse(res))
}

func deleteResponse(res *identity.DeleteResult) dto.DeleteResponse {
	return dto.DeleteResponse{
		Status:        "deleted",
		FacesDeleted:  res.FacesDeleted,
		PointsDeleted: res.PointsDeleted,
		CropsDeleted:  res.CropsDeleted,
		PhotosDeleted: res.PhotosDeleted,
	}
}
