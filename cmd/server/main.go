package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/onnwee/pagelens/backend/internal/api"
	"github.com/onnwee/pagelens/backend/internal/api/handlers"
	"github.com/onnwee/pagelens/backend/internal/artifacts"
	"github.com/onnwee/pagelens/backend/internal/cache"
	"github.com/onnwee/pagelens/backend/internal/circuitbreaker"
	"github.com/onnwee/pagelens/backend/internal/collaborators"
	"github.com/onnwee/pagelens/backend/internal/config"
	"github.com/onnwee/pagelens/backend/internal/coordinator"
	"github.com/onnwee/pagelens/backend/internal/durable"
	"github.com/onnwee/pagelens/backend/internal/errorreporting"
	"github.com/onnwee/pagelens/backend/internal/fetchguard"
	"github.com/onnwee/pagelens/backend/internal/janitor"
	"github.com/onnwee/pagelens/backend/internal/logger"
	"github.com/onnwee/pagelens/backend/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logger.Init(cfg.LogLevel)
	logger.Info("Initializing server", "version", cfg.SentryRelease, "log_level", cfg.LogLevel)

	// Initialize error reporting
	if err := errorreporting.Init(cfg.SentryEnvironment); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.IsSentryEnabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	// Initialize tracing
	shutdownTracing, err := tracing.Init("pagelens-server")
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			logger.Info("Shutting down tracer...")
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	// Cache tiers
	fetchCache, err := cache.NewLRU[*fetchguard.RawContent]("fetch", cfg.FetchCacheMaxEntries, cfg.FetchCacheTTL)
	if err != nil {
		log.Fatalf("fetch cache: %v", err)
	}
	analysisCache, err := cache.NewLRU[*coordinator.AnalysisResult]("analysis", cfg.AnalysisCacheMaxEntries, cfg.AnalysisCacheTTL)
	if err != nil {
		log.Fatalf("analysis cache: %v", err)
	}
	artifactCache, err := cache.NewLRU[artifacts.Record]("artifact", cfg.ArtifactCacheMaxEntries, cfg.ArtifactCacheTTL)
	if err != nil {
		log.Fatalf("artifact cache: %v", err)
	}

	// Artifact storage
	store, err := artifacts.NewFSStore(cfg.ArtifactDir, cfg.ArtifactExt)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}

	// Optional durable artifact index
	var durableStore *durable.Store
	if cfg.DatabaseURL != "" {
		durableStore, err = durable.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("durable index: %v", err)
		}
		defer durableStore.Close()
		warmArtifactCache(artifactCache, durableStore)
	}

	// Outbound fetch: breaker, pacing, retries
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "page_fetch",
		FailureThreshold: cfg.CBFailureThreshold,
		SuccessThreshold: cfg.CBSuccessThreshold,
		RecoveryTimeout:  cfg.CBRecoveryTimeout,
	})
	var limiter *rate.Limiter
	if cfg.FetchRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FetchRPS), cfg.FetchBurstSize)
	}
	guard := fetchguard.New(collaborators.NewHTTPFetcher(cfg.UserAgent), breaker, fetchguard.Config{
		Timeout:              cfg.FetchTimeout,
		MaxRetries:           cfg.FetchMaxRetries,
		RetryBase:            cfg.FetchRetryBase,
		CountStatusAsFailure: cfg.CBCountStatusAsFailure,
		Limiter:              limiter,
	})

	// Pipeline coordinator
	coord := coordinator.New(
		fetchCache, analysisCache, artifactCache,
		guard,
		collaborators.NewHTMLExtractor(),
		collaborators.NewFrequencyAnalyzer(),
		collaborators.NewWordCloudSVG(),
		store,
		coordinator.Config{
			Singleflight: cfg.SingleflightEnabled,
			Durable:      durableStore,
		},
	)

	// Janitor sweeps expired entries and orphaned artifact files
	jan := janitor.New(
		janitor.Config{
			Interval:         cfg.JanitorInterval,
			MaxArtifactFiles: cfg.MaxArtifactFiles,
			ArtifactTTL:      cfg.ArtifactCacheTTL,
		},
		map[string]janitor.Tier{
			"fetch":    fetchCache,
			"analysis": analysisCache,
		},
		artifactCache, store, durableStore,
	)

	// Response cache for the HTTP surface
	responses, err := cache.NewResponseCache(int64(cfg.ResponseCacheMB), 10_000, cfg.ResponseCacheTTL)
	if err != nil {
		log.Fatalf("response cache: %v", err)
	}
	defer responses.Close()

	router := api.NewRouter(&handlers.Env{
		Coordinator: coord,
		Breaker:     breaker,
		Responses:   responses,
		Store:       store,
		Janitor:     jan,
		ArtifactDir: cfg.ArtifactDir,
		AdminToken:  cfg.AdminAPIToken,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go jan.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
		jan.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Server running", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed", "error", err)
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}

// warmArtifactCache repopulates the artifact tier from the durable index.
// Records whose file went missing while the process was down are skipped;
// the janitor removes them from the index on its next sweep.
func warmArtifactCache(artifactCache *cache.LRU[artifacts.Record], durableStore *durable.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recs, err := durableStore.List(ctx)
	if err != nil {
		logger.Warn("Failed to warm artifact cache from durable index", "error", err)
		return
	}

	warmed := 0
	for i := len(recs) - 1; i >= 0; i-- { // oldest first so newest end up most recent
		rec := recs[i]
		info, err := os.Stat(rec.StoragePath)
		if err != nil {
			continue
		}
		artifactCache.Put(rec.Key, rec, info.Size())
		warmed++
	}
	logger.Info("Warmed artifact cache from durable index", "records", len(recs), "warmed", warmed)
}
