package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wastelens_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Classification metrics
	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelens_classifications_total",
			Help: "Total number of classified images by decision",
		},
		[]string{"source", "decision"}, // source: http, websocket
	)

	classificationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelens_classification_errors_total",
			Help: "Total number of failed classifications",
		},
		[]string{"source", "type"}, // type: decode, model, timeout
	)

	classificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wastelens_classification_duration_seconds",
			Help:    "Classification and explanation duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	classificationScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wastelens_classification_score",
			Help:    "Distribution of raw Recyclable scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	feedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelens_feedback_total",
			Help: "Total number of user corrections for uncertain predictions",
		},
		[]string{"label"},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wastelens_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wastelens_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelens_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
