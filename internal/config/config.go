package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/pagelens/backend/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Cache tiers
	FetchCacheMaxEntries    int
	FetchCacheTTL           time.Duration
	AnalysisCacheMaxEntries int
	AnalysisCacheTTL        time.Duration
	ArtifactCacheMaxEntries int
	ArtifactCacheTTL        time.Duration

	// Circuit breaker
	CBFailureThreshold     int
	CBSuccessThreshold     int
	CBRecoveryTimeout      time.Duration
	CBCountStatusAsFailure bool // whether a well-formed non-2xx trips the breaker

	// Outbound fetch
	FetchTimeout    time.Duration
	FetchMaxRetries int
	FetchRetryBase  time.Duration
	FetchRPS        float64 // outbound pacing, 0 disables
	FetchBurstSize  int
	UserAgent       string

	// Coordinator
	SingleflightEnabled bool

	// Janitor
	JanitorInterval  time.Duration
	MaxArtifactFiles int

	// Artifact storage
	ArtifactDir string
	ArtifactExt string

	// Optional durable artifact index
	DatabaseURL string

	// HTTP server
	Port                 string
	AdminAPIToken        string
	ResponseCacheMB      int
	ResponseCacheTTL     time.Duration
	RateLimitGlobal      float64
	RateLimitGlobalBurst int
	RateLimitPerIP       float64
	RateLimitPerIPBurst  int
	EnableRateLimit      bool
	CORSAllowedOrigins   []string

	// Observability
	LogLevel          string
	OTELEnabled       bool
	OTELEndpoint      string
	OTELSampleRate    float64
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	ua := strings.TrimSpace(os.Getenv("FETCH_USER_AGENT"))
	if ua == "" {
		ua = "pagelens/0.1"
	}
	cached = &Config{
		FetchCacheMaxEntries:    utils.GetEnvAsInt("FETCH_CACHE_MAX_ENTRIES", 500),
		FetchCacheTTL:           utils.GetEnvAsMillis("FETCH_CACHE_TTL_MS", 15*60*1000),
		AnalysisCacheMaxEntries: utils.GetEnvAsInt("ANALYSIS_CACHE_MAX_ENTRIES", 1000),
		AnalysisCacheTTL:        utils.GetEnvAsMillis("ANALYSIS_CACHE_TTL_MS", 60*60*1000),
		ArtifactCacheMaxEntries: utils.GetEnvAsInt("ARTIFACT_CACHE_MAX_ENTRIES", 200),
		ArtifactCacheTTL:        utils.GetEnvAsMillis("ARTIFACT_CACHE_TTL_MS", 24*60*60*1000),

		CBFailureThreshold:     utils.GetEnvAsInt("CB_FAILURE_THRESHOLD", 5),
		CBSuccessThreshold:     utils.GetEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
		CBRecoveryTimeout:      utils.GetEnvAsMillis("CB_RECOVERY_TIMEOUT_MS", 60*1000),
		CBCountStatusAsFailure: utils.GetEnvAsBool("CB_COUNT_STATUS_AS_FAILURE", true),

		FetchTimeout:    utils.GetEnvAsMillis("FETCH_TIMEOUT_MS", 15000),
		FetchMaxRetries: utils.GetEnvAsInt("FETCH_MAX_RETRIES", 3),
		FetchRetryBase:  utils.GetEnvAsMillis("FETCH_RETRY_BASE_MS", 300),
		FetchRPS:        utils.GetEnvAsFloat("FETCH_RPS", 0),
		FetchBurstSize:  utils.GetEnvAsInt("FETCH_BURST_SIZE", 1),
		UserAgent:       ua,

		SingleflightEnabled: utils.GetEnvAsBool("SINGLEFLIGHT_ENABLED", false),

		JanitorInterval:  utils.GetEnvAsMillis("JANITOR_INTERVAL_MS", 5*60*1000),
		MaxArtifactFiles: utils.GetEnvAsInt("MAX_ARTIFACT_FILES", 500),

		ArtifactDir: strings.TrimSpace(os.Getenv("ARTIFACT_DIR")),
		ArtifactExt: strings.TrimSpace(os.Getenv("ARTIFACT_EXT")),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),

		Port:                 strings.TrimSpace(os.Getenv("PORT")),
		AdminAPIToken:        strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
		ResponseCacheMB:      utils.GetEnvAsInt("RESPONSE_CACHE_MB", 32),
		ResponseCacheTTL:     utils.GetEnvAsMillis("RESPONSE_CACHE_TTL_MS", 60*1000),
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),

		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
	}
	if cached.Port == "" {
		cached.Port = "8000"
	}
	if cached.ArtifactDir == "" {
		cached.ArtifactDir = "./artifacts"
	}
	if cached.ArtifactExt == "" {
		cached.ArtifactExt = ".svg"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	// Parse CORS allowed origins
	corsOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if corsOrigins == "" {
		// Default to common development origins
		cached.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	} else {
		cached.CORSAllowedOrigins = utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", nil, ",")
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
