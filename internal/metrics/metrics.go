package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache tier metrics. The tier label is one of: fetch, analysis, artifact.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_cache_hits_total",
			Help: "Total number of cache hits per tier",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_cache_misses_total",
			Help: "Total number of cache misses per tier",
		},
		[]string{"tier"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_cache_evictions_total",
			Help: "Total number of capacity evictions per tier",
		},
		[]string{"tier"},
	)

	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_cache_expirations_total",
			Help: "Total number of TTL expirations per tier",
		},
		[]string{"tier"},
	)

	CacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pagelens_cache_items",
			Help: "Current number of entries per tier",
		},
		[]string{"tier"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pagelens_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	CircuitBreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_circuit_breaker_rejections_total",
			Help: "Total number of calls rejected while the circuit was open",
		},
		[]string{"component"},
	)

	// Outbound fetch metrics
	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_fetch_requests_total",
			Help: "Total number of outbound fetch attempts",
		},
		[]string{"status"}, // status: success, retry, error
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagelens_fetch_retries_total",
			Help: "Total number of fetch retries",
		},
	)

	FetchRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagelens_fetch_retry_after_wait_seconds",
			Help:    "Waits imposed by Retry-After headers",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagelens_fetch_duration_seconds",
			Help:    "Duration of outbound fetches including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Pipeline metrics
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_pipeline_requests_total",
			Help: "Total number of analysis pipeline runs",
		},
		[]string{"outcome"}, // outcome: success, partial, failure
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagelens_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // stage: fetch, extract, analyze, generate
	)

	// Janitor metrics
	JanitorSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagelens_janitor_sweeps_total",
			Help: "Total number of janitor sweeps",
		},
	)

	JanitorEntriesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_janitor_entries_removed_total",
			Help: "Total number of expired entries removed by the janitor per tier",
		},
		[]string{"tier"},
	)

	JanitorFilesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_janitor_files_deleted_total",
			Help: "Total number of artifact files deleted by the janitor",
		},
		[]string{"reason"}, // reason: orphaned, trimmed
	)

	ArtifactFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagelens_artifact_files",
			Help: "Current number of artifact files on disk",
		},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagelens_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Response cache (HTTP layer) metrics
	ResponseCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_response_cache_hits_total",
			Help: "Total number of HTTP response cache hits",
		},
		[]string{"endpoint"},
	)

	ResponseCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_response_cache_misses_total",
			Help: "Total number of HTTP response cache misses",
		},
		[]string{"endpoint"},
	)
)
