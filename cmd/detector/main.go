package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attention/internal/config"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
	"github.com/your-org/attention/internal/queue"
	"github.com/your-org/attention/internal/storage"
	"github.com/your-org/attention/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	onnxLib := flag.String("onnx-lib", "", "path to the ONNX Runtime shared library")
	metricsAddr := flag.String("metrics-addr", ":8082", "metrics listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting face detector",
		"camera", cfg.Detector.CameraID,
		"interval", cfg.Detector.Interval,
		"embedding_dim", cfg.Detector.EmbeddingDim,
	)

	if err := vision.InitRuntime(*onnxLib); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

	analyzer, err := vision.NewAnalyzer(cfg.Detector)
	if err != nil {
		slog.Error("load face models", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := producer.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("detector metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	frames := vision.NewLocalDetector(minioStore, analyzer, cfg.Detector.FramePrefix)
	go run(ctx, cfg.Detector, frames, analyzer, producer)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down detector...")
	cancel()
	slog.Info("detector stopped")
}

// run analyzes the newest frame every interval and publishes what it finds.
// Empty batches are published too, so the engine sees people leave.
func run(ctx context.Context, cfg config.DetectorConfig, frames *vision.LocalDetector, analyzer *vision.Analyzer, producer *queue.Producer) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := frames.Next(ctx)
		if err != nil {
			observability.DetectionFailures.Inc()
			slog.Warn("read frame", "error", err)
			continue
		}
		if frame == nil {
			continue
		}

		observations, err := analyzer.Analyze(frame.Image, frame.CapturedAt)
		if err != nil {
			observability.DetectionFailures.Inc()
			slog.Warn("analyze frame", "frame", frame.Key, "error", err)
			continue
		}

		batch := models.ObservationBatch{
			CameraID:     cfg.CameraID,
			FrameRef:     frame.Key,
			CapturedAt:   frame.CapturedAt,
			Observations: observations,
		}
		if err := producer.PublishObservations(ctx, batch); err != nil {
			slog.Warn("publish observations", "frame", frame.Key, "error", err)
			continue
		}
		slog.Debug("frame analyzed", "frame", frame.Key, "faces", len(observations))
	}
}
