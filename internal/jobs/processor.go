package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/observability"
	"github.com/Limmita2/FaseWatch/internal/vision"
)

// EventPublisher receives the resolution of each committed face.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.ResolutionEvent) error
}

// Processor handles one photo task end to end.
type Processor struct {
	blobs       identity.BlobStore
	analyzer    vision.Analyzer
	coordinator *identity.Coordinator
	events      EventPublisher
}

// NewProcessor wires a processor. events may be nil.
func NewProcessor(blobs identity.BlobStore, analyzer vision.Analyzer, coordinator *identity.Coordinator, events EventPublisher) *Processor {
	return &Processor{
		blobs:       blobs,
		analyzer:    analyzer,
		coordinator: coordinator,
		events:      events,
	}
}

// Process is idempotent only up to the relational commit: a retried task
// whose first attempt committed records its faces again.
func (p *Processor) Process(ctx context.Context, task models.PhotoTask) ([]identity.FaceResult, error) {
	start := time.Now()

	data, err := p.blobs.Get(ctx, task.PhotoKey)
	if err != nil {
		return nil, fmt.Errorf("load photo %s: %w", task.PhotoKey, err)
	}

	img, err := vision.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	observations, err := p.analyzer.Analyze(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("analyze photo %s: %w", task.PhotoKey, err)
	}

	results, err := p.coordinator.RecordPhoto(ctx, identity.Photo{
		MessageID: task.MessageID,
		GroupID:   task.GroupID,
		Timestamp: task.Timestamp,
		Image:     img,
	}, observations)
	if err != nil {
		return nil, fmt.Errorf("record photo %s: %w", task.PhotoKey, err)
	}
	observability.StageDuration.WithLabelValues("job").Observe(time.Since(start).Seconds())

	slog.Info("photo processed",
		"photo_key", task.PhotoKey,
		"message_id", task.MessageID,
		"faces", len(results),
	)

	if p.events != nil {
		now := time.Now().UTC()
		for _, r := range results {
			// committed already; a lost event only delays the live feed
			if err := p.events.PublishEvent(ctx, r.Event(now)); err != nil {
				slog.Warn("publish resolution event", "face_id", r.Face.ID, "error", err)
			}
		}
	}
	return results, nil
}
