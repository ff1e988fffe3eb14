package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/vision"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

const (
	defaultTopK      = 5
	maxTopK          = 20
	defaultThreshold = 50
	contextRadius    = 5
	maxUploadBytes   = 20 << 20
)

// MessageReader loads the relational rows a search result is enriched with.
type MessageReader interface {
	FaceReader
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	MessageContext(ctx context.Context, m *models.Message, radius int) ([]models.Message, error)
}

type SearchHandler struct {
	analyzer vision.Analyzer
	matcher  *identity.Matcher
	messages MessageStore
	contexts *gocache.Cache
}

// NewSearchHandler caches message contexts for contextTTL.
func NewSearchHandler(analyzer vision.Analyzer, matcher *identity.Matcher, messages MessageStore, contextTTL time.Duration) *SearchHandler {
	return &SearchHandler{
		analyzer: analyzer,
		matcher:  matcher,
		messages: messages,
		contexts: gocache.New(contextTTL, 2*contextTTL),
	}
}

type searchParams struct {
	topK      int
	threshold int
	faceIndex *int
}

func parseSearchParams(c *gin.Context) (searchParams, bool) {
	p := searchParams{topK: defaultTopK, threshold: defaultThreshold}
	bad := func(msg string) (searchParams, bool) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return p, false
	}

	if v := c.Query("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTopK {
			return bad("top_k must be between 1 and 20")
		}
		p.topK = n
	}
	if v := c.Query("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return bad("threshold must be between 0 and 100")
		}
		p.threshold = n
	}
	if v := c.Query("face_index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return bad("face_index must be non-negative")
		}
		p.faceIndex = &n
	}
	return p, true
}

// Face detects faces in the uploaded photo and searches for the selected one.
// With several faces and no face_index only the boxes are returned, flagged
// requires_selection. An out-of-range face_index falls back to the first face.
func (h *SearchHandler) Face(c *gin.Context) {
	params, ok := parseSearchParams(c)
	if !ok {
		return
	}

	data, ok := readUpload(c, "photo")
	if !ok {
		return
	}

	img, err := vision.DecodeImage(data)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	faces, err := h.analyzer.Analyze(ctx, img)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.SearchResponse{FacesDetected: len(faces), Results: make([]dto.FaceSearchResult, 0, len(faces))}
	for i, f := range faces {
		resp.Results = append(resp.Results, dto.FaceSearchResult{FaceIndex: i, BBox: f.BBox, Matches: []dto.SearchMatch{}})
	}
	if len(faces) == 0 {
		c.JSON(http.StatusOK, resp)
		return
	}
	if len(faces) > 1 && params.faceIndex == nil {
		resp.RequiresSelection = true
		c.JSON(http.StatusOK, resp)
		return
	}

	selected := 0
	if params.faceIndex != nil && *params.faceIndex < len(faces) {
		selected = *params.faceIndex
	}

	matches, err := h.matcher.Search(ctx, faces[selected].Embedding, params.topK, float64(params.threshold)/100)
	if err != nil {
		respondError(c, err)
		return
	}

	for _, m := range matches {
		match, err := h.enrich(ctx, m)
		if err != nil {
			respondError(c, err)
			return
		}
		if match != nil {
			resp.Results[selected].Matches = append(resp.Results[selected].Matches, *match)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// enrich joins a vector hit with its face row. Points whose face is gone are
// skipped; the reconciler removes them.
func (h *SearchHandler) enrich(ctx context.Context, m identity.Match) (*dto.SearchMatch, error) {
	face, err := h.messages.GetFace(ctx, m.FaceID)
	if err != nil {
		return nil, err
	}
	if face == nil {
		return nil, nil
	}

	out := &dto.SearchMatch{
		Similarity: math.Round(float64(m.Score)*1000) / 10,
		PersonID:   face.PersonID,
		FaceID:     face.ID,
		CropPath:   face.CropPath,
	}
	if face.MessageID == nil {
		return out, nil
	}

	mc, err := h.messageContext(ctx, *face.MessageID)
	if err != nil {
		return nil, err
	}
	if mc != nil {
		out.Context = mc
		out.PhotoPath = mc.Message.PhotoPath
	}
	return out, nil
}

func (h *SearchHandler) messageContext(ctx context.Context, messageID uuid.UUID) (*dto.MessageContext, error) {
	key := messageID.String()
	if v, ok := h.contexts.Get(key); ok {
		return v.(*dto.MessageContext), nil
	}

	msg, err := h.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	mc, err := buildMessageContext(ctx, h.messages, msg, contextRadius)
	if err != nil {
		return nil, err
	}
	h.contexts.SetDefault(key, mc)
	return mc, nil
}

// Text finds messages whose text contains q, case-insensitively, newest
// first, each with its neighbours.
func (h *SearchHandler) Text(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q required"})
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	rows, err := h.messages.ListMessages(ctx, models.MessageFilter{Text: q, Limit: limit, Offset: offset})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.TextSearchResponse{Query: q, Results: make([]dto.TextSearchResult, 0, len(rows))}
	for _, r := range rows {
		mc, err := h.messageContext(ctx, r.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp.Results = append(resp.Results, dto.TextSearchResult{MessageListItem: messageListItem(r), Context: mc})
	}
	resp.Total = len(resp.Results)
	c.JSON(http.StatusOK, resp)
}
