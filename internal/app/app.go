// Package app opens the stores every FaceWatch binary shares and builds the
// identity services on top of them.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Limmita2/FaseWatch/internal/config"
	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/storage"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
	"github.com/Limmita2/FaseWatch/internal/vision"
)

// Deps are the long-lived connections of one process.
type Deps struct {
	Config *config.Config
	DB     *storage.PostgresStore
	Blobs  *storage.MinIOStore
	Index  vectorindex.Index

	vectorPool *pgxpool.Pool
}

// Open connects to Postgres, applies migrations, connects to MinIO and opens
// the configured vector index.
func Open(ctx context.Context, cfg *config.Config) (*Deps, error) {
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	d := &Deps{Config: cfg, DB: db}

	if err := db.Migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}

	d.Blobs, err = storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		d.Close()
		return nil, err
	}
	if err := d.Blobs.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	if err := d.openIndex(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) openIndex(ctx context.Context) error {
	vc := d.Config.VectorIndex
	switch vc.Backend {
	case "memory":
		slog.Warn("using in-process vector index; points are lost on exit")
		d.Index = vectorindex.NewMemory(vc.Dimension)
		return nil
	case "pgvector":
		pool := d.DB.Pool()
		if vc.DSN != "" {
			p, err := pgxpool.New(ctx, vc.DSN)
			if err != nil {
				return fmt.Errorf("connect to vector database: %w", err)
			}
			d.vectorPool = p
			pool = p
		}
		idx := vectorindex.NewPGVector(pool, vc.Table, vc.Dimension)
		if err := idx.EnsureSchema(ctx); err != nil {
			return err
		}
		d.Index = idx
		return nil
	default:
		return fmt.Errorf("vector backend %q is not supported", vc.Backend)
	}
}

func (d *Deps) Matcher() *identity.Matcher {
	return identity.NewMatcher(d.Index, d.Config.VectorIndex.Dimension)
}

// Coordinator builds the photo recording service with JPEG face crops.
func (d *Deps) Coordinator() *identity.Coordinator {
	id := d.Config.Identity
	return identity.NewCoordinator(d.DB, d.Index, d.Blobs, d.Matcher(),
		identity.NewResolver(id.AutoLinkThreshold, id.ReviewFloor), vision.CropJPEG)
}

func (d *Deps) ReviewQueue() *identity.ReviewQueue {
	return identity.NewReviewQueue(d.DB, d.Index)
}

func (d *Deps) Curator() *identity.Curator {
	return identity.NewCurator(d.DB, d.Index, d.Blobs)
}

func (d *Deps) Reconciler() *identity.Reconciler {
	return identity.NewReconciler(d.DB, d.Index, identity.WithOrphanGrace(d.Config.Identity.OrphanGrace))
}

// Analyzer returns a lazily built ONNX analyzer with the given detector size.
func (d *Deps) Analyzer(detSize int) *vision.Lazy {
	vc := d.Config.Vision
	return vision.NewLazy(func() (vision.Analyzer, error) {
		a, err := vision.NewONNXAnalyzer(vc, detSize)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}

func (d *Deps) Close() {
	if d.vectorPool != nil {
		d.vectorPool.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
