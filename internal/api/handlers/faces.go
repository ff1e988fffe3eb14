package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
)

// FaceReader looks up single faces outside a transaction.
type FaceReader interface {
	GetFace(ctx context.Context, id uuid.UUID) (*models.Face, error)
}

type FaceHandler struct {
	faces FaceReader
	blobs identity.BlobStore
}

func NewFaceHandler(faces FaceReader, blobs identity.BlobStore) *FaceHandler {
	return &FaceHandler{faces: faces, blobs: blobs}
}

// Crop streams the stored JPEG crop of a face.
func (h *FaceHandler) Crop(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	face, err := h.faces.GetFace(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if face == nil || face.CropPath == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "crop not found"})
		return
	}

	data, err := h.blobs.Get(c.Request.Context(), *face.CropPath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/jpeg", data)
}
