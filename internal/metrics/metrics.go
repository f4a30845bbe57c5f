package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal result",
		},
		[]string{"result"}, // "completed", "failed", "short_circuit"
	)

	StageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_stage_total",
			Help: "Total number of stage executions by outcome",
		},
		[]string{"stage", "outcome"}, // "completed", "failed", "skipped", "deferred"
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_pipeline_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"stage"},
	)

	StageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_stage_retries_total",
			Help: "Total number of stage retry attempts",
		},
		[]string{"stage"},
	)

	PipelineActiveChains = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_pipeline_active_chains",
			Help: "Number of pipeline chains currently executing",
		},
	)

	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_escalations_total",
			Help: "Total number of failure escalation decisions",
		},
		[]string{"action"}, // "diagnose", "ticket", "none"
	)
)

// Derivative metrics
var (
	DerivativesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_derivatives_generated_total",
			Help: "Total number of derivatives generated",
		},
		[]string{"kind", "status"}, // kind: "thumbnail", "preview", "video_preview"
	)

	VerificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_verification_failures_total",
			Help: "Total number of artifact verification failures",
		},
		[]string{"kind", "reason"}, // reason: "missing", "undersized"
	)
)

// Color analysis metrics
var (
	ColorAnalysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_color_analysis_total",
			Help: "Total number of color analysis runs",
		},
		[]string{"status"}, // "ok", "skipped", "error"
	)

	ColorAnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_pipeline_color_analysis_duration_seconds",
			Help:    "Color analysis duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// AI vendor metrics
var (
	AICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_ai_calls_total",
			Help: "Total number of AI vendor API calls",
		},
		[]string{"operation", "status"}, // operation: "tags", "metadata"
	)
)

// Blob store metrics
var (
	BlobOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_blob_ops_total",
			Help: "Total number of blob store operations",
		},
		[]string{"operation", "status"},
	)

	BlobRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_blob_retry_attempts_total",
			Help: "Total number of blob store operation retries",
		},
		[]string{"operation"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_pipeline_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_pipeline_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_pipeline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_pipeline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_pipeline_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)
