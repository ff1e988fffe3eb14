package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Limmita2/FaseWatch/internal/app"
	"github.com/Limmita2/FaseWatch/internal/config"
	"github.com/Limmita2/FaseWatch/internal/jobs"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/observability"
	"github.com/Limmita2/FaseWatch/internal/queue"
	"github.com/Limmita2/FaseWatch/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	flush, err := observability.InitSentry(cfg.Sentry, "worker")
	if err != nil {
		slog.Warn("init sentry", "error", err)
	}
	defer flush()

	slog.Info("starting FaceWatch worker",
		"workers", cfg.Jobs.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
		"auto_link_threshold", cfg.Identity.AutoLinkThreshold,
		"review_floor", cfg.Identity.ReviewFloor,
	)

	if err := vision.InitRuntime(cfg.Vision.RuntimeLib); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("open stores", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	analyzer := deps.Analyzer(cfg.Vision.DetSize)
	defer analyzer.Close()
	// Fail fast on missing models instead of on the first task.
	if _, err := analyzer.Get(); err != nil {
		slog.Error("load vision models", "error", err)
		os.Exit(1)
	}

	processor := jobs.NewProcessor(deps.Blobs, analyzer, deps.Coordinator(), producer)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	policy := jobs.RetryPolicy{MaxAttempts: cfg.Jobs.MaxAttempts, Delay: cfg.Jobs.RetryDelay}
	err = consumer.ConsumePhotos(ctx, "photo-workers", func(ctx context.Context, task models.PhotoTask) error {
		_, err := processor.Process(ctx, task)
		return err
	}, cfg.Jobs.WorkerCount, policy)
	if err != nil {
		slog.Error("start photo consumer", "error", err)
		os.Exit(1)
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Jobs.MetricsPort),
		ReadHeaderTimeout: 5 * time.Second,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	metricsSrv.Handler = mux
	go func() {
		slog.Info("worker metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	if cfg.Identity.ReconcileInterval > 0 {
		slog.Info("reconciler enabled", "interval", cfg.Identity.ReconcileInterval)
		go app.RunReconciler(ctx, deps.Reconciler(), cfg.Identity.ReconcileInterval)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	consumer.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	slog.Info("worker stopped")
}
