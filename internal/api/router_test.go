package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Limmita2/FaseWatch/internal/api"
	"github.com/Limmita2/FaseWatch/internal/api/handlers"
	"github.com/Limmita2/FaseWatch/internal/auth"
	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/storage/mock"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
	"github.com/Limmita2/FaseWatch/internal/vision"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

const (
	dim      = 4
	userKey  = "user-key"
	adminKey = "admin-key"
)

type stubAnalyzer struct {
	obs []models.Observation
}

func (s *stubAnalyzer) Analyze(context.Context, image.Image) ([]models.Observation, error) {
	return s.obs, nil
}

func (s *stubAnalyzer) Close() {}

type taskRecorder struct {
	mu    sync.Mutex
	tasks []models.PhotoTask
	err   error
}

func (r *taskRecorder) PublishPhoto(_ context.Context, t models.PhotoTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, t)
	return nil
}

type server struct {
	t        *testing.T
	store    *mock.Store
	index    *vectorindex.Memory
	blobs    *mock.BlobStore
	analyzer *stubAnalyzer
	tasks    *taskRecorder
	coord    *identity.Coordinator
	checkErr error
	handler  http.Handler
	group    models.Group
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &server{
		t:        t,
		store:    mock.NewStore(),
		index:    vectorindex.NewMemory(dim),
		blobs:    mock.NewBlobStore(),
		analyzer: &stubAnalyzer{},
		tasks:    &taskRecorder{},
	}
	matcher := identity.NewMatcher(s.index, dim)
	s.coord = identity.NewCoordinator(s.store, s.index, s.blobs, matcher, identity.NewResolver(0.75, 0.60), vision.CropJPEG)
	s.group = s.store.AddGroup(models.Group{Name: "chat"})

	s.handler = api.NewRouter(api.RouterConfig{
		Keys:        auth.Keys{APIKey: userKey, AdminKey: adminKey},
		Store:       s.store,
		Blobs:       s.blobs,
		Tasks:       s.tasks,
		ReviewQueue: identity.NewReviewQueue(s.store, s.index),
		Curator:     identity.NewCurator(s.store, s.index, s.blobs),
		Matcher:     matcher,
		Analyzer:    s.analyzer,
		Checks: map[string]handlers.Check{
			"postgres": func(context.Context) error { return s.checkErr },
		},
		ContextTTL: time.Minute,
	})
	return s
}

func at(minute int) *time.Time {
	ts := time.Date(2024, 5, 1, 10, minute, 0, 0, time.UTC)
	return &ts
}

func vec(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos)), 0, 0}
}

// record stores one face per vector on a fresh message at the given minute.
func (s *server) record(minute int, vs ...[]float32) (models.Message, []identity.FaceResult) {
	s.t.Helper()
	text := "hello"
	msg := s.store.AddMessage(models.Message{GroupID: s.group.ID, Text: &text, HasPhoto: true, Timestamp: at(minute)})
	var observations []models.Observation
	for _, v := range vs {
		observations = append(observations, models.Observation{BBox: [4]float32{8, 8, 40, 40}, Embedding: v, Confidence: 0.99})
	}
	res, err := s.coord.RecordPhoto(context.Background(), identity.Photo{
		MessageID: &msg.ID,
		Timestamp: *at(minute),
		Image:     imaging.New(64, 64, color.White),
	}, observations)
	require.NoError(s.t, err)
	return msg, res
}

func (s *server) do(method, path, key string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *server) json(method, path, key string, v any) *httptest.ResponseRecorder {
	var body []byte
	if v != nil {
		var err error
		body, err = json.Marshal(v)
		require.NoError(s.t, err)
	}
	return s.do(method, path, key, body, "application/json")
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, imaging.New(32, 32, color.Black), nil))
	return buf.Bytes()
}

func multipartBody(t *testing.T, fields map[string]string, photo []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if photo != nil {
		fw, err := w.CreateFormFile("photo", "photo.jpg")
		require.NoError(t, err)
		_, err = fw.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSystemEndpoints(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil, "").Code)

	s.checkErr = errors.New("connection refused")
	w := s.do(http.MethodGet, "/readyz", "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/queue", "", nil, "").Code)
}

func TestQueueReview(t *testing.T) {
	s := newServer(t)
	_, first := s.record(0, vec(1))
	_, second := s.record(1, vec(0.7))
	require.Equal(t, identity.NewPersonWithReview, second[0].Decision.Action)

	w := s.do(http.MethodGet, "/v1/queue", userKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.QueueListResponse](t, w)
	require.Len(t, list.Entries, 1)
	entry := list.Entries[0]
	assert.Equal(t, *first[0].Face.PersonID, entry.SuggestedPersonID)
	assert.InDelta(t, 0.7, entry.Similarity, 1e-3)

	req := httptest.NewRequest(http.MethodPost, "/v1/queue/"+entry.ID.String()+"/confirm", nil)
	req.Header.Set("X-API-Key", userKey)
	req.Header.Set("X-Reviewer", "olena")
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[dto.ReviewResponse](t, w)
	assert.Equal(t, "confirmed", out.Status)
	assert.Equal(t, *first[0].Face.PersonID, out.PersonID)
	require.NotNil(t, out.RemovedPersonID)
	assert.Equal(t, *second[0].Face.PersonID, *out.RemovedPersonID)

	stored, ok := s.store.QueueEntry(entry.ID)
	require.True(t, ok)
	assert.Equal(t, "olena", *stored.ReviewedBy)

	w = s.do(http.MethodPost, "/v1/queue/"+entry.ID.String()+"/reject", userKey, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/queue/"+uuid.NewString()+"/confirm", userKey, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/queue/nope/confirm", userKey, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/queue?limit=0", userKey, nil, "").Code)
}

func TestQueueReject(t *testing.T) {
	s := newServer(t)
	s.record(0, vec(1))
	_, second := s.record(1, vec(0.65))

	list := decode[dto.QueueListResponse](t, s.do(http.MethodGet, "/v1/queue", userKey, nil, ""))
	require.Len(t, list.Entries, 1)

	w := s.do(http.MethodPost, "/v1/queue/"+list.Entries[0].ID.String()+"/reject", userKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[dto.ReviewResponse](t, w)
	assert.Equal(t, "rejected", out.Status)
	assert.Equal(t, second[0].Face.ID, out.FaceID)

	list = decode[dto.QueueListResponse](t, s.do(http.MethodGet, "/v1/queue", userKey, nil, ""))
	assert.Empty(t, list.Entries)
}

func TestPersons(t *testing.T) {
	s := newServer(t)
	_, a := s.record(0, vec(1))
	_, b := s.record(1, vec(0.1))
	pa, pb := *a[0].Face.PersonID, *b[0].Face.PersonID

	list := decode[dto.PersonListResponse](t, s.do(http.MethodGet, "/v1/persons", userKey, nil, ""))
	assert.Equal(t, 2, list.Total)

	w := s.json(http.MethodPatch, "/v1/persons/"+pa.String(), userKey, map[string]any{"display_name": "Ivan", "confirmed": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.PersonResponse](t, w)
	assert.Equal(t, "Ivan", *updated.DisplayName)
	assert.True(t, updated.Confirmed)
	assert.Equal(t, 1, updated.FaceCount)

	confirmed := decode[dto.PersonListResponse](t, s.do(http.MethodGet, "/v1/persons?confirmed=true", userKey, nil, ""))
	require.Len(t, confirmed.Persons, 1)
	assert.Equal(t, pa, confirmed.Persons[0].ID)

	detail := decode[dto.PersonDetailResponse](t, s.do(http.MethodGet, "/v1/persons/"+pa.String(), userKey, nil, ""))
	require.Len(t, detail.Faces, 1)
	assert.Equal(t, a[0].Face.ID, detail.Faces[0].ID)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/persons/"+uuid.NewString(), userKey, nil, "").Code)

	merge := map[string]any{"source_id": pb, "target_id": pa}
	assert.Equal(t, http.StatusForbidden, s.json(http.MethodPost, "/v1/persons/merge", userKey, merge).Code)

	w = s.json(http.MethodPost, "/v1/persons/merge", adminKey, merge)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	merged := decode[dto.MergePersonsResponse](t, w)
	assert.Equal(t, pa, merged.TargetID)
	assert.Equal(t, 1, merged.FacesMoved)
	_, exists := s.store.Person(pb)
	assert.False(t, exists)

	self := map[string]any{"source_id": pa, "target_id": pa}
	assert.Equal(t, http.StatusBadRequest, s.json(http.MethodPost, "/v1/persons/merge", adminKey, self).Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/v1/persons/"+pa.String(), userKey, nil, "").Code)
	w = s.do(http.MethodDelete, "/v1/persons/"+pa.String(), adminKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	del := decode[dto.DeleteResponse](t, w)
	assert.Equal(t, 2, del.FacesDeleted)
	assert.Zero(t, s.index.Len())
}

func TestFaceCrop(t *testing.T) {
	s := newServer(t)
	_, res := s.record(0, vec(1))

	w := s.do(http.MethodGet, "/v1/faces/"+res[0].Face.ID.String()+"/crop", userKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	_, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/faces/"+uuid.NewString()+"/crop", userKey, nil, "").Code)
}

func TestSearchFace(t *testing.T) {
	s := newServer(t)
	s.store.AddMessage(models.Message{GroupID: s.group.ID, Timestamp: at(0)})
	matched, res := s.record(5, vec(1))
	s.store.AddMessage(models.Message{GroupID: s.group.ID, Timestamp: at(9)})
	s.record(30, vec(0.1))

	s.analyzer.obs = []models.Observation{
		{BBox: [4]float32{0, 0, 10, 10}, Embedding: vec(0.2), Confidence: 0.9},
		{BBox: [4]float32{10, 10, 20, 20}, Embedding: vec(0.99), Confidence: 0.95},
	}
	body, ct := multipartBody(t, nil, jpegBytes(t))

	w := s.do(http.MethodPost, "/v1/search/face", userKey, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sel := decode[dto.SearchResponse](t, w)
	assert.True(t, sel.RequiresSelection)
	assert.Equal(t, 2, sel.FacesDetected)
	assert.Empty(t, sel.Results[0].Matches)

	w = s.do(http.MethodPost, "/v1/search/face?face_index=1&top_k=5&threshold=90", userKey, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	found := decode[dto.SearchResponse](t, w)
	assert.False(t, found.RequiresSelection)
	assert.Empty(t, found.Results[0].Matches)
	require.Len(t, found.Results[1].Matches, 1)

	m := found.Results[1].Matches[0]
	assert.Equal(t, res[0].Face.ID, m.FaceID)
	assert.Equal(t, res[0].Face.PersonID, m.PersonID)
	assert.InDelta(t, 99.0, m.Similarity, 0.1)
	require.NotNil(t, m.CropPath)
	require.NotNil(t, m.Context)
	assert.Equal(t, "chat", *m.Context.GroupName)
	assert.Equal(t, matched.ID, m.Context.Message.ID)
	assert.Len(t, m.Context.Before, 1)
	// the minute-9 message and the minute-30 message
	assert.Len(t, m.Context.After, 2)
}

func TestSearchFace_Validation(t *testing.T) {
	s := newServer(t)
	body, ct := multipartBody(t, nil, jpegBytes(t))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/search/face?top_k=21", userKey, body, ct).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/search/face?threshold=101", userKey, body, ct).Code)

	w := s.do(http.MethodPost, "/v1/search/face", userKey, body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	none := decode[dto.SearchResponse](t, w)
	assert.Zero(t, none.FacesDetected)

	garbage, ct := multipartBody(t, nil, []byte("not a photo"))
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPost, "/v1/search/face", userKey, garbage, ct).Code)

	missing, ct := multipartBody(t, nil, nil)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/search/face", userKey, missing, ct).Code)
}

func TestInputUpload(t *testing.T) {
	s := newServer(t)
	body, ct := multipartBody(t, map[string]string{"text": "seen at the station"}, jpegBytes(t))

	w := s.do(http.MethodPost, "/v1/input", userKey, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[dto.InputResponse](t, w)
	assert.Equal(t, "Manual input", out.GroupName)
	assert.True(t, out.FacesQueued)
	assert.True(t, s.blobs.Has(out.PhotoPath))

	msg, err := s.store.GetMessage(context.Background(), out.MessageID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "seen at the station", *msg.Text)
	assert.Equal(t, out.PhotoPath, *msg.PhotoPath)

	require.Len(t, s.tasks.tasks, 1)
	assert.Equal(t, out.MessageID, *s.tasks.tasks[0].MessageID)
	assert.Equal(t, out.PhotoPath, s.tasks.tasks[0].PhotoKey)

	// existing group by id
	body, ct = multipartBody(t, map[string]string{"group_id": s.group.ID.String()}, jpegBytes(t))
	out = decode[dto.InputResponse](t, s.do(http.MethodPost, "/v1/input", userKey, body, ct))
	assert.Equal(t, s.group.ID, out.GroupID)

	s.tasks.err = errors.New("nats down")
	body, ct = multipartBody(t, nil, jpegBytes(t))
	w = s.do(http.MethodPost, "/v1/input", userKey, body, ct)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, decode[dto.InputResponse](t, w).FacesQueued)

	empty, ct := multipartBody(t, nil, []byte{})
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/input", userKey, empty, ct).Code)
}

func TestDeleteGroup(t *testing.T) {
	s := newServer(t)
	msg, _ := s.record(0, vec(1), vec(0.1))
	key := "photos/chat/0.jpg"
	require.NoError(t, s.blobs.Put(context.Background(), key, jpegBytes(t), "image/jpeg"))
	require.NoError(t, s.store.SetMessagePhoto(context.Background(), msg.ID, key))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/v1/groups/"+s.group.ID.String(), userKey, nil, "").Code)

	w := s.do(http.MethodDelete, "/v1/groups/"+s.group.ID.String(), adminKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	del := decode[dto.DeleteResponse](t, w)
	assert.Equal(t, 2, del.FacesDeleted)
	assert.Equal(t, 2, del.CropsDeleted)
	assert.Equal(t, 1, del.PhotosDeleted)

	_, faces, _ := s.store.Counts()
	assert.Zero(t, faces)
	assert.Zero(t, s.index.Len())
	assert.Empty(t, s.blobs.Keys())
}

func TestListMessages(t *testing.T) {
	s := newServer(t)
	other := s.store.AddGroup(models.Group{Name: "other"})
	text := "plain"
	s.store.AddMessage(models.Message{GroupID: s.group.ID, Text: &text, Timestamp: at(1)})
	withPhoto, _ := s.record(2, vec(1))
	s.store.AddMessage(models.Message{GroupID: other.ID, Timestamp: at(3)})

	w := s.do(http.MethodGet, "/v1/messages", userKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	all := decode[dto.MessageListResponse](t, w)
	require.Equal(t, 3, all.Total)
	assert.Equal(t, other.ID, all.Messages[0].GroupID, "newest first")
	assert.Equal(t, "other", *all.Messages[0].GroupName)

	photos := decode[dto.MessageListResponse](t, s.do(http.MethodGet, "/v1/messages?only_with_photo=true", userKey, nil, ""))
	require.Len(t, photos.Messages, 1)
	assert.Equal(t, withPhoto.ID, photos.Messages[0].ID)

	inGroup := decode[dto.MessageListResponse](t, s.do(http.MethodGet, "/v1/messages?group_id="+s.group.ID.String(), userKey, nil, ""))
	assert.Len(t, inGroup.Messages, 2)

	since := decode[dto.MessageListResponse](t, s.do(http.MethodGet, "/v1/messages?date_from=2024-05-01T10:02:00Z", userKey, nil, ""))
	assert.Len(t, since.Messages, 2)

	paged := decode[dto.MessageListResponse](t, s.do(http.MethodGet, "/v1/messages?limit=1&offset=1", userKey, nil, ""))
	require.Len(t, paged.Messages, 1)
	assert.Equal(t, withPhoto.ID, paged.Messages[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/messages?group_id=nope", userKey, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/messages?date_to=yesterday", userKey, nil, "").Code)
}

func TestMessageContext(t *testing.T) {
	s := newServer(t)
	var ids []uuid.UUID
	for minute := 0; minute < 7; minute++ {
		ids = append(ids, s.store.AddMessage(models.Message{GroupID: s.group.ID, Timestamp: at(minute)}).ID)
	}

	w := s.do(http.MethodGet, "/v1/messages/"+ids[3].String()+"/context", userKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mc := decode[dto.MessageContext](t, w)
	assert.Equal(t, ids[3], mc.Message.ID)
	require.Len(t, mc.Before, 2)
	assert.Equal(t, ids[1], mc.Before[0].ID)
	assert.Equal(t, ids[2], mc.Before[1].ID)
	require.Len(t, mc.After, 2)
	assert.Equal(t, ids[4], mc.After[0].ID)
	assert.Equal(t, "chat", *mc.GroupName)

	edge := decode[dto.MessageContext](t, s.do(http.MethodGet, "/v1/messages/"+ids[0].String()+"/context", userKey, nil, ""))
	assert.Empty(t, edge.Before)
	assert.Len(t, edge.After, 2)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/messages/"+uuid.NewString()+"/context", userKey, nil, "").Code)
}

func TestDeleteMessage(t *testing.T) {
	s := newServer(t)
	msg, res := s.record(0, vec(1))
	key := "photos/chat/1.jpg"
	require.NoError(t, s.blobs.Put(context.Background(), key, jpegBytes(t), "image/jpeg"))
	require.NoError(t, s.store.SetMessagePhoto(context.Background(), msg.ID, key))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/v1/messages/"+msg.ID.String(), userKey, nil, "").Code)

	w := s.do(http.MethodDelete, "/v1/messages/"+msg.ID.String(), adminKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	del := decode[dto.DeleteResponse](t, w)
	assert.Equal(t, 1, del.FacesDeleted)
	assert.Equal(t, 1, del.CropsDeleted)
	assert.Equal(t, 1, del.PhotosDeleted)

	_, ok := s.store.Face(res[0].Face.ID)
	assert.False(t, ok)
	assert.Zero(t, s.index.Len())
	assert.Empty(t, s.blobs.Keys())
	_, ok = s.store.Person(*res[0].Face.PersonID)
	assert.True(t, ok)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/v1/messages/"+msg.ID.String(), adminKey, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/v1/messages/nope", adminKey, nil, "").Code)
}

func TestListGroups(t *testing.T) {
	s := newServer(t)
	s.record(4, vec(1))
	s.store.AddMessage(models.Message{GroupID: s.group.ID, Timestamp: at(9)})
	s.store.AddMessage(models.Message{GroupID: s.group.ID})
	empty := s.store.AddGroup(models.Group{Name: "empty"})

	w := s.do(http.MethodGet, "/v1/groups", userKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[dto.GroupListResponse](t, w)
	require.Equal(t, 2, list.Total)

	assert.Equal(t, empty.ID, list.Groups[0].ID, "newest first")
	assert.Nil(t, list.Groups[0].LastMessageAt)
	assert.Equal(t, s.group.ID, list.Groups[1].ID)
	require.NotNil(t, list.Groups[1].LastMessageAt)
	assert.Equal(t, dto.FormatTime(*at(9)), *list.Groups[1].LastMessageAt)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/groups", "", nil, "").Code)
}

func TestSearchText(t *testing.T) {
	s := newServer(t)
	red, blue := "The Red car left", "a blue car"
	s.store.AddMessage(models.Message{GroupID: s.group.ID, Timestamp: at(0)})
	hit := s.store.AddMessage(models.Message{GroupID: s.group.ID, Text: &red, Timestamp: at(1)})
	s.store.AddMessage(models.Message{GroupID: s.group.ID, Text: &blue, Timestamp: at(2)})

	w := s.do(http.MethodGet, "/v1/search/text?q=red", userKey, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[dto.TextSearchResponse](t, w)
	assert.Equal(t, "red", out.Query)
	require.Equal(t, 1, out.Total)
	r := out.Results[0]
	assert.Equal(t, hit.ID, r.ID)
	assert.Equal(t, "chat", *r.GroupName)
	require.NotNil(t, r.Context)
	assert.Len(t, r.Context.Before, 1)
	assert.Len(t, r.Context.After, 1)

	cars := decode[dto.TextSearchResponse](t, s.do(http.MethodGet, "/v1/search/text?q=CAR", userKey, nil, ""))
	assert.Equal(t, 2, cars.Total)

	none := decode[dto.TextSearchResponse](t, s.do(http.MethodGet, "/v1/search/text?q=train", userKey, nil, ""))
	assert.Empty(t, none.Results)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/search/text", userKey, nil, "").Code)
}

func TestUploadTooLarge(t *testing.T) {
	s := newServer(t)
	big := make([]byte, 20<<20+1)
	copy(big, jpegBytes(t))

	for _, path := range []string{"/v1/input", "/v1/search/face"} {
		body, ct := multipartBody(t, nil, big)
		w := s.do(http.MethodPost, path, userKey, body, ct)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, path)
	}
	assert.Empty(t, s.blobs.Keys())
	assert.Empty(t, s.tasks.tasks)
}
