package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/onnwee/pagelens/backend/internal/apierr"
)

// GetArtifact serves a stored artifact file by name. Only base names are
// accepted; anything resembling a path is rejected before touching disk.
func GetArtifact(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if name == "" || name != filepath.Base(name) || name[0] == '.' {
			apierr.WriteErrorWithContext(w, r,
				apierr.New(apierr.ErrValidationInvalidURL, "Invalid artifact name", http.StatusBadRequest))
			return
		}

		http.ServeFile(w, r, filepath.Join(env.ArtifactDir, name))
	}
}
