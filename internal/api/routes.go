package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/pagelens/backend/internal/api/handlers"
	"github.com/onnwee/pagelens/backend/internal/config"
	"github.com/onnwee/pagelens/backend/internal/middleware"
)

// NewRouter assembles the HTTP surface around the pipeline.
func NewRouter(env *handlers.Env) *mux.Router {
	cfg := config.Load()

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RecoverWithSentry)
	if cfg.EnableRateLimit {
		rl := middleware.NewRateLimiter(
			cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst,
		)
		r.Use(rl.Limit)
	}
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Compress)

	r.HandleFunc("/healthz", handlers.Health()).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/analyze", handlers.PostAnalyze(env)).Methods("POST")
	apiRouter.HandleFunc("/status", handlers.GetStatus(env)).Methods("GET")
	apiRouter.HandleFunc("/artifacts/{name}", handlers.GetArtifact(env)).Methods("GET")

	admin := apiRouter.PathPrefix("/admin").Subrouter()
	admin.Use(handlers.RequireAdmin(env.AdminToken))
	admin.HandleFunc("/invalidate", handlers.PostInvalidate(env)).Methods("POST")
	admin.HandleFunc("/sweep", handlers.PostSweep(env)).Methods("POST")

	return r
}
