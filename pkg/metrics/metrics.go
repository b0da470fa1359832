package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_gate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_gate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_gate_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Transcoding metrics
var (
	TranscodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_gate_transcode_jobs_total",
			Help: "Transcoding jobs by terminal status",
		},
		[]string{"status"},
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_gate_transcode_duration_seconds",
			Help:    "Wall time of a transcoding job",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	TranscodeQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_gate_transcode_queue_depth",
			Help: "Jobs waiting in the in-process queue",
		},
	)
)

// Access metrics
var (
	AccessDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_gate_access_decisions_total",
			Help: "Entitlement evaluations by outcome",
		},
		[]string{"outcome"},
	)

	TokenRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_gate_token_rejections_total",
			Help: "Stream requests rejected at token verification",
		},
		[]string{"reason"},
	)

	CatalogIndexRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_gate_catalog_index_rebuilds_total",
			Help: "Full rebuilds of the video to course index",
		},
	)
)
