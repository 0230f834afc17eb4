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

	"github.com/your-org/attention/internal/api"
	"github.com/your-org/attention/internal/api/handlers"
	"github.com/your-org/attention/internal/api/ws"
	"github.com/your-org/attention/internal/config"
	"github.com/your-org/attention/internal/engine"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
	"github.com/your-org/attention/internal/queue"
	"github.com/your-org/attention/internal/storage"
	"github.com/your-org/attention/internal/vision"
)

// idleDetector never sees anyone; the engine then only serves enrollment
// and history.
type idleDetector struct{}

func (idleDetector) Detect(context.Context) ([]models.FaceObservation, error) { return nil, nil }

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	onnxLib := flag.String("onnx-lib", "", "path to the ONNX Runtime shared library")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attention engine",
		"port", cfg.Server.Port,
		"camera", cfg.Detector.CameraID,
		"source", cfg.Detector.Source,
		"storage", cfg.Storage.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := storage.Open(ctx, cfg)
	defer backend.Close()

	checks := map[string]handlers.Check{}
	if backend.Postgres != nil {
		checks["postgres"] = backend.Postgres.Ping
	}
	if backend.MinIO != nil {
		checks["minio"] = backend.MinIO.Ping
	}

	// ONNX Runtime serves the in-process detector and image captures.
	var analyzer *vision.Analyzer
	if err := vision.InitRuntime(*onnxLib); err != nil {
		if cfg.Detector.Source == "onnx" {
			slog.Error("onnx detector requires the runtime", "error", err)
			os.Exit(1)
		}
		slog.Warn("onnx runtime unavailable, image captures disabled", "error", err)
	} else {
		defer vision.DestroyRuntime()
		analyzer, err = vision.NewAnalyzer(cfg.Detector)
		if err != nil {
			if cfg.Detector.Source == "onnx" {
				slog.Error("load face models", "error", err)
				os.Exit(1)
			}
			slog.Warn("face models unavailable, image captures disabled", "error", err)
		} else {
			defer analyzer.Close()
		}
	}

	var detector engine.Detector
	switch cfg.Detector.Source {
	case "nats":
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		feed := queue.NewObservationFeed(consumer, cfg.Detector.CameraID)
		if err := feed.Start(ctx); err != nil {
			slog.Error("start observation feed", "error", err)
			os.Exit(1)
		}
		checks["nats"] = func(context.Context) error { return consumer.Ping() }
		detector = feed
	case "onnx":
		if backend.MinIO == nil {
			slog.Error("onnx detector reads frames from minio, which is not configured")
			os.Exit(1)
		}
		detector = vision.NewLocalDetector(backend.MinIO, analyzer, cfg.Detector.FramePrefix)
	default:
		detector = idleDetector{}
	}

	opts := engine.Options{
		Tracking:   cfg.Tracking,
		Counter:    cfg.Counter,
		Detector:   detector,
		Store:      backend.KV,
		GalleryKey: cfg.Storage.GalleryKey,
		HistoryKey: cfg.Storage.HistoryKey,
	}
	if cfg.Storage.IndexEmbeddings && backend.Postgres != nil {
		opts.Indexer = backend.Postgres
	}
	eng, err := engine.New(opts)
	if err != nil {
		slog.Error("create engine", "error", err)
		os.Exit(1)
	}
	if err := eng.Load(ctx); err != nil {
		slog.Warn("restore state, starting empty", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)
	hub.Attach(eng)

	eng.Start(ctx)

	routerCfg := api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		Engine:      eng,
		Hub:         hub,
		Checks:      checks,
	}
	if opts.Indexer != nil {
		routerCfg.Index = backend.Postgres
	}
	if backend.MinIO != nil {
		routerCfg.Portraits = backend.MinIO
	}
	if analyzer != nil {
		routerCfg.EmbedFn = analyzer.Embed
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down attention engine...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	eng.Stop()
	cancel()
	slog.Info("attention engine stopped")
}
