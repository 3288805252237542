// Package handlers implements the HTTP endpoints consuming the analysis
// pipeline.
package handlers

import (
	"github.com/onnwee/pagelens/backend/internal/artifacts"
	"github.com/onnwee/pagelens/backend/internal/cache"
	"github.com/onnwee/pagelens/backend/internal/circuitbreaker"
	"github.com/onnwee/pagelens/backend/internal/coordinator"
	"github.com/onnwee/pagelens/backend/internal/janitor"
)

// Env bundles the shared dependencies handlers need.
type Env struct {
	Coordinator *coordinator.Coordinator
	Breaker     *circuitbreaker.CircuitBreaker
	Responses   cache.ByteCache
	Store       artifacts.Store
	Janitor     *janitor.Janitor
	ArtifactDir string
	AdminToken  string
}
