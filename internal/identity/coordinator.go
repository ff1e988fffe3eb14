package identity

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/observability"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

// CropFunc encodes the region bbox of img as a JPEG.
type CropFunc func(img image.Image, bbox [4]float32) ([]byte, error)

// Photo is the unit of work: one image, optionally tied to a message.
type Photo struct {
	MessageID *uuid.UUID
	GroupID   *uuid.UUID
	Timestamp time.Time
	Image     image.Image
}

// FaceResult describes one committed face.
type FaceResult struct {
	Face         models.Face
	Decision     Decision
	QueueEntryID *uuid.UUID
}

// Event converts the result into the notification published after commit.
func (r FaceResult) Event(ts time.Time) models.ResolutionEvent {
	ev := models.ResolutionEvent{
		FaceID:       r.Face.ID,
		MessageID:    r.Face.MessageID,
		Kind:         r.Decision.Action.Kind(),
		Score:        r.Decision.Score,
		QueueEntryID: r.QueueEntryID,
		Timestamp:    ts,
	}
	if r.Face.PersonID != nil {
		ev.PersonID = *r.Face.PersonID
	}
	return ev
}

// CropKey is the blob key of a face crop.
func CropKey(faceID uuid.UUID) string {
	return fmt.Sprintf("faces/%s.jpg", faceID)
}

// Coordinator writes a photo's faces across the relational store, the vector
// index and the blob store. Only the relational commit is durable; vector
// points written by a failed attempt are deleted afterwards.
type Coordinator struct {
	store    Store
	index    vectorindex.Index
	blobs    BlobStore
	matcher  *Matcher
	resolver Resolver
	crop     CropFunc
}

func NewCoordinator(store Store, index vectorindex.Index, blobs BlobStore, matcher *Matcher, resolver Resolver, crop CropFunc) *Coordinator {
	return &Coordinator{
		store:    store,
		index:    index,
		blobs:    blobs,
		matcher:  matcher,
		resolver: resolver,
		crop:     crop,
	}
}

// written tracks side effects outside the relational transaction.
type written struct {
	points []uuid.UUID
	crops  []string
}

func (c *Coordinator) RecordPhoto(ctx context.Context, photo Photo, observations []models.Observation) ([]FaceResult, error) {
	var results []FaceResult
	var w written

	err := c.store.InTx(ctx, func(tx Tx) error {
		results = results[:0]
		w = written{}

		groupID := photo.GroupID
		if photo.MessageID != nil {
			msg, err := tx.GetMessage(ctx, *photo.MessageID)
			if err != nil {
				return fmt.Errorf("load message: %w", err)
			}
			if msg == nil {
				return fmt.Errorf("message %s: %w", *photo.MessageID, ErrNotFound)
			}
			if groupID == nil {
				groupID = &msg.GroupID
			}
		}

		for _, obs := range observations {
			res, err := c.recordFace(ctx, tx, photo, groupID, obs, &w)
			if err != nil {
				return err
			}
			results = append(results, *res)
		}
		return nil
	})
	if err != nil {
		c.compensate(w)
		return nil, err
	}

	observability.PhotosProcessed.Inc()
	observability.FacesDetected.Add(float64(len(results)))
	for _, r := range results {
		observability.Resolutions.WithLabelValues(r.Decision.Action.String()).Inc()
	}
	return results, nil
}

func (c *Coordinator) recordFace(ctx context.Context, tx Tx, photo Photo, groupID *uuid.UUID, obs models.Observation, w *written) (*FaceResult, error) {
	candidate, err := c.matcher.FindBestCandidate(ctx, obs.Embedding)
	if err != nil {
		return nil, err
	}
	if candidate != nil {
		p, err := tx.GetPerson(ctx, candidate.PersonID)
		if err != nil {
			return nil, fmt.Errorf("load candidate person: %w", err)
		}
		if p == nil {
			slog.Warn("candidate references missing person, ignoring",
				"person_id", candidate.PersonID, "point_id", candidate.PointID)
			candidate = nil
		}
	}
	decision := c.resolver.Decide(candidate)

	personID := decision.PersonID
	if decision.Action != AutoLink {
		p := &models.Person{}
		if err := tx.CreatePerson(ctx, p); err != nil {
			return nil, err
		}
		personID = p.ID
	}

	face := &models.Face{
		PersonID:   &personID,
		MessageID:  photo.MessageID,
		BBox:       obs.BBox,
		Confidence: obs.Confidence,
	}
	if err := tx.InsertFace(ctx, face); err != nil {
		return nil, err
	}

	cropPath := c.storeCrop(ctx, photo.Image, face.ID, obs.BBox)
	if cropPath != nil {
		w.crops = append(w.crops, *cropPath)
	}

	pointID, err := c.index.Upsert(ctx, vectorindex.Point{
		Vector: obs.Embedding,
		Payload: vectorindex.Payload{
			FaceID:    face.ID,
			PersonID:  personID,
			MessageID: photo.MessageID,
			GroupID:   groupID,
			Timestamp: photo.Timestamp,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upsert face vector: %w: %w", ErrUnavailable, err)
	}
	w.points = append(w.points, pointID)

	if err := tx.SetFaceVector(ctx, face.ID, pointID, cropPath); err != nil {
		return nil, err
	}
	face.PointID = &pointID
	face.CropPath = cropPath

	res := &FaceResult{Face: *face, Decision: decision}
	if decision.Action == NewPersonWithReview {
		entry := &models.QueueEntry{
			FaceID:            face.ID,
			SuggestedPersonID: decision.Suggested,
			Similarity:        decision.Score,
			Status:            models.StatusPending,
		}
		if err := tx.CreateQueueEntry(ctx, entry); err != nil {
			return nil, err
		}
		res.QueueEntryID = &entry.ID
	}

	slog.Debug("face resolved",
		"face_id", face.ID, "person_id", personID, "decision", decision.Action.String(), "score", decision.Score)
	return res, nil
}

// storeCrop extracts and uploads the face crop. Failures are logged and yield
// a nil path.
func (c *Coordinator) storeCrop(ctx context.Context, img image.Image, faceID uuid.UUID, bbox [4]float32) *string {
	if img == nil || c.crop == nil {
		return nil
	}
	data, err := c.crop(img, bbox)
	if err != nil {
		observability.CropFailures.Inc()
		slog.Warn("extract face crop", "face_id", faceID, "error", err)
		return nil
	}
	key := CropKey(faceID)
	if err := c.blobs.Put(ctx, key, data, "image/jpeg"); err != nil {
		observability.CropFailures.Inc()
		slog.Warn("store face crop", "face_id", faceID, "error", err)
		return nil
	}
	return &key
}

// compensate removes vector points and crops of a rolled-back attempt. What
// survives is left to the reconciler.
func (c *Coordinator) compensate(w written) {
	if len(w.points) == 0 && len(w.crops) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.index.Delete(ctx, w.points); err != nil {
		slog.Warn("compensate vector points", "points", len(w.points), "error", err)
	}
	if len(w.crops) > 0 {
		if err := c.blobs.DeleteObjects(ctx, w.crops); err != nil {
			slog.Warn("compensate face crops", "crops", len(w.crops), "error", err)
		}
	}
}
