package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/pagelens/backend/internal/apierr"
	"github.com/onnwee/pagelens/backend/internal/cache"
)

type tierStatus struct {
	Items       int    `json:"items"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	SizeHint    int64  `json:"size_hint"`
}

type statusResponse struct {
	Tiers         map[string]tierStatus `json:"tiers"`
	CircuitState  string                `json:"circuit_state"`
	ArtifactFiles int                   `json:"artifact_files"`
}

// GetStatus reports per-tier cache statistics, the breaker state and the
// artifact store size.
func GetStatus(env *Env) http.HandlerFunc {
	toTier := func(s cache.Stats) tierStatus {
		return tierStatus{
			Items:       s.Items,
			Hits:        s.Hits,
			Misses:      s.Misses,
			Evictions:   s.Evictions,
			Expirations: s.Expirations,
			SizeHint:    s.SizeHint,
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		files, err := env.Store.List()
		if err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.SystemInternal("artifact store unavailable"))
			return
		}

		resp := statusResponse{
			Tiers: map[string]tierStatus{
				"fetch":    toTier(env.Coordinator.FetchCache().Stats()),
				"analysis": toTier(env.Coordinator.AnalysisCache().Stats()),
				"artifact": toTier(env.Coordinator.ArtifactCache().Stats()),
			},
			CircuitState:  env.Breaker.GetState().String(),
			ArtifactFiles: len(files),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// Health is a liveness probe.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
