package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceworker",
		Name:      "images_processed_total",
		Help:      "Total number of digested images by outcome",
	}, []string{"outcome"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceworker",
		Name:      "faces_detected_total",
		Help:      "Total number of faces passing the confidence filter",
	})

	PointsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceworker",
		Name:      "points_upserted_total",
		Help:      "Total number of face points written to the vector store",
	})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceworker",
		Name:      "retries_total",
		Help:      "Total per-image retries by pipeline stage",
	}, []string{"stage"})

	ActiveDigestJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceworker",
		Name:      "active_digest_jobs",
		Help:      "Number of digest jobs currently processing",
	})

	ClusterDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "faceworker",
		Name:      "cluster_duration_seconds",
		Help:      "Duration of clustering runs",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	ClustersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceworker",
		Name:      "clusters_created_total",
		Help:      "Total number of clusters produced by clustering runs",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceworker",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceworker",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
