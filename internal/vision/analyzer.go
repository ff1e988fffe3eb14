package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Limmita2/FaseWatch/internal/config"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/observability"
)

// Analyzer turns an image into face observations.
type Analyzer interface {
	Analyze(ctx context.Context, img image.Image) ([]models.Observation, error)
	Close()
}

// ONNXAnalyzer runs RetinaFace + ArcFace. ONNX sessions bind fixed tensors,
// so calls are serialized.
type ONNXAnalyzer struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
}

// NewONNXAnalyzer loads det_10g.onnx and w600k_r50.onnx from the models dir.
// detSize selects the detector input edge.
func NewONNXAnalyzer(cfg config.VisionConfig, detSize int) (*ONNXAnalyzer, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	slog.Info("loading detection model", "path", detPath, "size", detSize)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold), detSize, opts)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath, opts)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &ONNXAnalyzer{detector: det, embedder: emb}, nil
}

func (a *ONNXAnalyzer) Analyze(ctx context.Context, img image.Image) ([]models.Observation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bounds := img.Bounds()

	start := time.Now()
	detections, err := a.detector.Detect(preprocessForDetection(img, a.detector.InputSize()), bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	observations := make([]models.Observation, 0, len(detections))
	for _, d := range detections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// detector boxes are relative to the bounds origin
		box := [4]float32{
			d.BBox[0] + float32(bounds.Min.X), d.BBox[1] + float32(bounds.Min.Y),
			d.BBox[2] + float32(bounds.Min.X), d.BBox[3] + float32(bounds.Min.Y),
		}
		crop, err := cropFace(img, box)
		if err != nil {
			slog.Debug("skip degenerate detection", "bbox", box)
			continue
		}

		start = time.Now()
		embedding, err := a.embedder.Extract(preprocessForEmbedding(crop))
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		observability.StageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		observations = append(observations, models.Observation{
			BBox:       box,
			Embedding:  embedding,
			Confidence: d.Confidence,
		})
	}
	return observations, nil
}

// Close releases all ONNX sessions.
func (a *ONNXAnalyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detector != nil {
		a.detector.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
}
