package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "photos_processed_total",
		Help:      "Total number of photo jobs committed",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected in ingested photos",
	})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "resolutions_total",
		Help:      "Identity resolutions by decision",
	}, []string{"decision"})

	ReviewActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "review_actions_total",
		Help:      "Review queue confirm/reject actions",
	}, []string{"action"})

	CropFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "crop_failures_total",
		Help:      "Face crops that could not be extracted or stored",
	})

	JobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "jobs_retried_total",
		Help:      "Photo jobs scheduled for another attempt",
	})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "jobs_failed_total",
		Help:      "Photo jobs given up on",
	}, []string{"reason"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facewatch",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	ReconcileRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "reconcile_repairs_total",
		Help:      "Cross-store inconsistencies found by the reconciler",
	}, []string{"kind"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facewatch",
		Name:      "photo_queue_depth",
		Help:      "Number of pending photo tasks in the stream",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facewatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facewatch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
