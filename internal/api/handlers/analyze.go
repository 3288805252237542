package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/onnwee/pagelens/backend/internal/apierr"
	"github.com/onnwee/pagelens/backend/internal/coordinator"
	"github.com/onnwee/pagelens/backend/internal/fetchguard"
	"github.com/onnwee/pagelens/backend/internal/keys"
	"github.com/onnwee/pagelens/backend/internal/logger"
	"github.com/onnwee/pagelens/backend/internal/metrics"
)

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	URL      string            `json:"url"`
	Fetch    fetchSection      `json:"fetch"`
	Analysis *analysisSection  `json:"analysis"`
	Artifact *artifactSection  `json:"artifact,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

type fetchSection struct {
	Source      string    `json:"source"` // cache | fresh
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	Bytes       int       `json:"bytes"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type analysisSection struct {
	Source string `json:"source"`
	*coordinator.AnalysisResult
}

type artifactSection struct {
	Source    string    `json:"source"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PostAnalyze runs the pipeline for the submitted URL. Successful
// responses are cached in the response cache keyed by the URL hash.
func PostAnalyze(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.InvalidJSON(""))
			return
		}
		if req.URL == "" {
			apierr.WriteErrorWithContext(w, r, apierr.InvalidURL(""))
			return
		}

		cacheKey := "analyze:" + keys.FromURL(req.URL).String()
		if body, ok := env.Responses.Get(cacheKey); ok {
			metrics.ResponseCacheHits.WithLabelValues("analyze").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(body)
			return
		}
		metrics.ResponseCacheMisses.WithLabelValues("analyze").Inc()

		res, err := env.Coordinator.Process(r.Context(), req.URL)
		if err != nil {
			if ferr, ok := fetchguard.AsFetchError(err); ok {
				apierr.WriteErrorWithContext(w, r, apierr.FromFetchError(ferr))
				return
			}
			logger.ErrorContext(r.Context(), "pipeline failed", "url", req.URL, "error", err)
			apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
			return
		}

		resp := analyzeResponse{
			URL: res.URL,
			Fetch: fetchSection{
				Source:      string(res.FetchSource),
				StatusCode:  res.Raw.StatusCode,
				ContentType: res.Raw.ContentType,
				Bytes:       len(res.Raw.Body),
				FetchedAt:   res.Raw.FetchedAt,
			},
			Analysis: &analysisSection{
				Source:         string(res.AnalysisSource),
				AnalysisResult: res.Analysis,
			},
		}
		if res.Artifact != nil {
			resp.Artifact = &artifactSection{
				Source:    string(res.ArtifactSource),
				Name:      filepath.Base(res.Artifact.StoragePath),
				CreatedAt: res.Artifact.CreatedAt,
			}
		}
		if res.ArtifactErr != nil {
			resp.Errors = map[string]string{"artifact": res.ArtifactErr.Error()}
		}

		body, err := json.Marshal(resp)
		if err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
			return
		}

		// Partial successes are not cached so the artifact gets retried.
		if res.ArtifactErr == nil {
			env.Responses.Set(cacheKey, body, 0)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "MISS")
		w.Write(body)
	}
}
