package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onnwee/pagelens/backend/internal/apierr"
	"github.com/onnwee/pagelens/backend/internal/keys"
	"github.com/onnwee/pagelens/backend/internal/logger"
)

// RequireAdmin gates admin endpoints behind a Bearer token. With no
// token configured, admin endpoints are disabled entirely.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				apierr.WriteErrorWithContext(w, r, apierr.AuthMissing())
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				apierr.WriteErrorWithContext(w, r, apierr.AuthMissing())
				return
			}

			provided := strings.TrimPrefix(auth, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				apierr.WriteErrorWithContext(w, r, apierr.AuthInvalid())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type invalidateRequest struct {
	URL string `json:"url"`
}

// PostInvalidate removes a URL from every cache tier.
func PostInvalidate(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invalidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.InvalidJSON(""))
			return
		}
		if req.URL == "" {
			apierr.WriteErrorWithContext(w, r, apierr.InvalidURL(""))
			return
		}

		env.Coordinator.Invalidate(r.Context(), req.URL)
		// The serialized response is keyed the same way as the fetch
		// tier; without this delete the old body keeps being served
		// until the response cache TTL runs out.
		env.Responses.Delete("analyze:" + keys.FromURL(req.URL).String())
		logger.InfoContext(r.Context(), "cache invalidated by admin", "url", req.URL)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"invalidated"}`))
	}
}

// PostSweep triggers an immediate janitor sweep.
func PostSweep(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env.Janitor.Sweep(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"swept"}`))
	}
}
