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
	"syscall"
	"time"

	"github.com/Limmita2/FaseWatch/internal/api"
	"github.com/Limmita2/FaseWatch/internal/api/handlers"
	"github.com/Limmita2/FaseWatch/internal/api/ws"
	"github.com/Limmita2/FaseWatch/internal/app"
	"github.com/Limmita2/FaseWatch/internal/auth"
	"github.com/Limmita2/FaseWatch/internal/config"
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

	flush, err := observability.InitSentry(cfg.Sentry, "api")
	if err != nil {
		slog.Warn("init sentry", "error", err)
	}
	defer flush()

	slog.Info("starting FaceWatch API", "port", cfg.Server.Port, "vector_backend", cfg.VectorIndex.Backend)

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
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	// Resolution events from the workers fan out to WebSocket clients.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeEvents(ctx, "api-events", func(_ context.Context, ev models.ResolutionEvent) error {
		hub.BroadcastEvent(ws.ResolutionEvent(ev))
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Search degrades to 503 when the runtime or the models are missing.
	if err := vision.InitRuntime(cfg.Vision.RuntimeLib); err != nil {
		slog.Warn("onnx runtime init failed, face search unavailable", "error", err)
	} else {
		defer vision.DestroyRuntime()
	}
	analyzer := deps.Analyzer(cfg.Vision.SearchDetSize)
	defer analyzer.Close()

	router := api.NewRouter(api.RouterConfig{
		Keys:        auth.Keys{APIKey: cfg.Server.APIKey, AdminKey: cfg.Server.AdminKey},
		Store:       deps.DB,
		Blobs:       deps.Blobs,
		Tasks:       producer,
		ReviewQueue: deps.ReviewQueue(),
		Curator:     deps.Curator(),
		Matcher:     deps.Matcher(),
		Analyzer:    analyzer,
		Hub:         hub,
		Checks: map[string]handlers.Check{
			"postgres":     deps.DB.Ping,
			"minio":        deps.Blobs.Ping,
			"vector_index": deps.Index.Ping,
			"nats": func(context.Context) error {
				return producer.Ping()
			},
		},
		ContextTTL: cfg.Cache.MessageTTL,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()
	consumer.Wait()
	<-hub.Done()

	slog.Info("API server stopped")
}
