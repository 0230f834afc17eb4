package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservationsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "observations_processed_total",
		Help:      "Total number of face observations applied to the track store",
	})

	TracksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "tracks_created_total",
		Help:      "Total number of tracks opened",
	}, []string{"identified"})

	TracksEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "tracks_evicted_total",
		Help:      "Total number of tracks removed by the sweep",
	})

	ActiveTracks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attn",
		Name:      "active_tracks",
		Help:      "Number of tracks currently in the track store",
	})

	AttentionRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "attention_records_total",
		Help:      "Total number of attention records appended to history",
	}, []string{"identified"})

	DetectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "detection_failures_total",
		Help:      "Detection ticks skipped because the detector failed",
	})

	ComparisonFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "comparison_failures_total",
		Help:      "Embedding comparisons treated as non-matching because of malformed input",
	})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "persistence_failures_total",
		Help:      "Failed snapshot writes, by snapshot",
	}, []string{"snapshot"})

	DiscardedDetections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attn",
		Name:      "discarded_detections_total",
		Help:      "Detection results dropped because the engine stopped while they were in flight",
	})

	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attn",
		Name:      "tick_duration_seconds",
		Help:      "Duration of engine ticks",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"tick"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attn",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	UniqueVisitors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "attn",
		Name:      "unique_visitors",
		Help:      "Unique visits counted by the people counter",
	}, []string{"window"})

	GallerySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attn",
		Name:      "gallery_identities",
		Help:      "Number of enrolled identities",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attn",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attn",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
