package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "puretone_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "puretone_upload_size_bytes",
			Help:    "Size of uploaded videos in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 12), // 1MB to 2GB
		},
	)

	// Run Metrics
	RunsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "puretone_runs_created_total",
			Help: "Total number of karaoke runs created",
		},
	)

	RunsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "puretone_runs_completed_total",
			Help: "Total number of finished karaoke runs",
		},
		[]string{"status"},
	)

	RunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "puretone_runs_in_progress",
			Help: "Number of runs currently being processed",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "puretone_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		},
		[]string{"stage"},
	)

	// Policy Metrics
	SeparationFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "puretone_separation_fallbacks_total",
			Help: "Number of 4stems separations degraded to 2stems",
		},
	)

	TranscriptionDowngradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "puretone_transcription_downgrades_total",
			Help: "Number of transcriptions overridden to the tiny model",
		},
	)

	ProbeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "puretone_probe_failures_total",
			Help: "Number of duration probes that returned unknown",
		},
	)
)
