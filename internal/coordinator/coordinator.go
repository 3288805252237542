// Package coordinator orchestrates the analysis pipeline across the
// three cache tiers: raw fetch results addressed by URL hash, analysis
// results addressed by content hash, and generated artifacts addressed
// by the same content hash. It is the only component aware of all the
// others; the caches, the fetch guard and the collaborators know nothing
// about each other.
package coordinator

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/pagelens/backend/internal/artifacts"
	"github.com/onnwee/pagelens/backend/internal/cache"
	"github.com/onnwee/pagelens/backend/internal/durable"
	"github.com/onnwee/pagelens/backend/internal/fetchguard"
	"github.com/onnwee/pagelens/backend/internal/keys"
	"github.com/onnwee/pagelens/backend/internal/logger"
)

// AnalysisResult is the opaque output of the analysis collaborator.
type AnalysisResult struct {
	Sentiment   float64        `json:"sentiment"` // -1..1
	Summary     string         `json:"summary"`
	Entities    []string       `json:"entities"`
	Frequencies map[string]int `json:"frequencies"`
	WordCount   int            `json:"word_count"`
}

// TextExtractor turns fetched content into normalized text. The result
// both keys the downstream tiers and feeds the analyzer, so it must be
// deterministic for identical rendered content.
type TextExtractor interface {
	Extract(ctx context.Context, content *fetchguard.RawContent) (string, error)
}

// Analyzer is the opaque NLP pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*AnalysisResult, error)
}

// ArtifactGenerator produces artifact bytes (e.g. a word-cloud image)
// from normalized text.
type ArtifactGenerator interface {
	Generate(ctx context.Context, text string) ([]byte, error)
}

// Source records where a pipeline stage's result came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceFresh Source = "fresh"
)

// Result is returned to the caller with per-tier provenance, so upstream
// layers can present degraded-but-honest responses.
type Result struct {
	URL         string
	FetchKey    keys.Key
	AnalysisKey keys.Key

	Raw      *fetchguard.RawContent
	Analysis *AnalysisResult
	Artifact *artifacts.Record

	FetchSource    Source
	AnalysisSource Source
	ArtifactSource Source

	// ArtifactErr is set when artifact generation or storage failed.
	// The analysis result is still valid; the failure is partial.
	ArtifactErr error
}

// Config holds coordinator configuration.
type Config struct {
	// Singleflight collapses concurrent producer calls for the same
	// key into one. Off by default: duplicate work on concurrent
	// misses is accepted, this is the at-most-once strengthening.
	Singleflight bool

	// Durable, when set, mirrors artifact records into the persistent
	// index so the artifact tier can be warmed after a restart.
	Durable *durable.Store
}

// Coordinator owns the three tier caches and drives each request through
// them. Construct one at service start and share it across request
// handlers; all methods are safe for concurrent use.
type Coordinator struct {
	fetchCache    *cache.LRU[*fetchguard.RawContent]
	analysisCache *cache.LRU[*AnalysisResult]
	artifactCache *cache.LRU[artifacts.Record]

	guard     *fetchguard.Guard
	extractor TextExtractor
	analyzer  Analyzer
	generator ArtifactGenerator
	store     artifacts.Store

	sf           singleflight.Group
	singleflight bool
	durable      *durable.Store
	log          *slog.Logger
}

// New wires a coordinator. All dependencies are injected; the caches are
// constructed by the caller so their lifecycle (and the janitor's view
// of them) stays outside this package.
func New(
	fetchCache *cache.LRU[*fetchguard.RawContent],
	analysisCache *cache.LRU[*AnalysisResult],
	artifactCache *cache.LRU[artifacts.Record],
	guard *fetchguard.Guard,
	extractor TextExtractor,
	analyzer Analyzer,
	generator ArtifactGenerator,
	store artifacts.Store,
	cfg Config,
) *Coordinator {
	return &Coordinator{
		fetchCache:    fetchCache,
		analysisCache: analysisCache,
		artifactCache: artifactCache,
		guard:         guard,
		extractor:     extractor,
		analyzer:      analyzer,
		generator:     generator,
		store:         store,
		singleflight:  cfg.Singleflight,
		durable:       cfg.Durable,
		log:           logger.WithComponent("coordinator"),
	}
}

// FetchCache exposes the fetch tier for the janitor and status reporting.
func (c *Coordinator) FetchCache() *cache.LRU[*fetchguard.RawContent] { return c.fetchCache }

// AnalysisCache exposes the analysis tier.
func (c *Coordinator) AnalysisCache() *cache.LRU[*AnalysisResult] { return c.analysisCache }

// ArtifactCache exposes the artifact tier.
func (c *Coordinator) ArtifactCache() *cache.LRU[artifacts.Record] { return c.artifactCache }

// Invalidate removes url from the fetch tier and, when the cached content
// is still available to derive the content key, from the analysis and
// artifact tiers as well. Best effort: once the fetch entry is gone the
// downstream entries age out via TTL instead.
func (c *Coordinator) Invalidate(ctx context.Context, url string) {
	fetchKey := keys.FromURL(url)

	if raw, ok := c.fetchCache.Get(fetchKey); ok {
		if text, err := c.extractor.Extract(ctx, raw); err == nil {
			contentKey := keys.FromText(text)
			c.analysisCache.Invalidate(contentKey)
			c.artifactCache.Invalidate(contentKey)
		}
	}
	c.fetchCache.Invalidate(fetchKey)
	c.log.Info("invalidated", "url", url, "fetch_key", fetchKey.Short())
}
