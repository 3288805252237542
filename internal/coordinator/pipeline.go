package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/pagelens/backend/internal/artifacts"
	"github.com/onnwee/pagelens/backend/internal/fetchguard"
	"github.com/onnwee/pagelens/backend/internal/keys"
	"github.com/onnwee/pagelens/backend/internal/metrics"
	"github.com/onnwee/pagelens/backend/internal/tracing"
)

// Process runs the full pipeline for url: fetch tier, analysis tier,
// artifact tier, short-circuiting at the earliest tier that hits.
//
// A fetch failure is returned as-is and nothing is cached, so a failing
// upstream never pollutes any tier. An artifact failure is reported in
// Result.ArtifactErr while the fetch and analysis results are still
// returned (partial success).
//
// ctx is honored by the fetch guard and the collaborators; cache lookups
// themselves are in-memory and not cancellable.
func (c *Coordinator) Process(ctx context.Context, url string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.process")
	defer span.End()

	res := &Result{
		URL:      url,
		FetchKey: keys.FromURL(url),
	}

	// Tier 1: raw fetch, addressed by URL hash.
	raw, src, err := c.fetchTier(ctx, res.FetchKey, url)
	if err != nil {
		metrics.PipelineRequests.WithLabelValues("failure").Inc()
		return nil, err
	}
	res.Raw = raw
	res.FetchSource = src

	// The analysis key is derived from content, not URL: two URLs with
	// identical rendered text share the downstream tiers.
	text, err := c.extractText(ctx, raw)
	if err != nil {
		metrics.PipelineRequests.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("extract text: %w", err)
	}
	res.AnalysisKey = keys.FromText(text)

	// Tier 2: analysis results.
	analysis, src, err := c.analysisTier(ctx, res.AnalysisKey, text)
	if err != nil {
		metrics.PipelineRequests.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("analyze: %w", err)
	}
	res.Analysis = analysis
	res.AnalysisSource = src

	// Tier 3: generated artifacts, addressed by the same content key.
	record, src, err := c.artifactTier(ctx, res.AnalysisKey, text)
	if err != nil {
		res.ArtifactErr = err
		metrics.PipelineRequests.WithLabelValues("partial").Inc()
		c.log.Warn("artifact generation failed, returning partial result",
			"url", url, "error", err)
		return res, nil
	}
	res.Artifact = record
	res.ArtifactSource = src

	metrics.PipelineRequests.WithLabelValues("success").Inc()
	return res, nil
}

func (c *Coordinator) fetchTier(ctx context.Context, key keys.Key, url string) (*fetchguard.RawContent, Source, error) {
	if raw, ok := c.fetchCache.Get(key); ok {
		return raw, SourceCache, nil
	}

	ctx, span := tracing.StartSpan(ctx, "pipeline.fetch")
	defer span.End()
	start := time.Now()

	raw, err := c.produceFetch(ctx, key, url)
	metrics.PipelineStageDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, "", err
	}

	c.fetchCache.Put(key, raw, int64(len(raw.Body)))
	return raw, SourceFresh, nil
}

func (c *Coordinator) produceFetch(ctx context.Context, key keys.Key, url string) (*fetchguard.RawContent, error) {
	if !c.singleflight {
		return c.guard.Fetch(ctx, url)
	}

	// Concurrent misses for the same key share one producer call. The
	// shared call runs under the first caller's context.
	v, err, _ := c.sf.Do("fetch:"+key.String(), func() (any, error) {
		return c.guard.Fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return v.(*fetchguard.RawContent), nil
}

func (c *Coordinator) extractText(ctx context.Context, raw *fetchguard.RawContent) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.extract")
	defer span.End()
	start := time.Now()

	text, err := c.extractor.Extract(ctx, raw)
	metrics.PipelineStageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	return text, err
}

func (c *Coordinator) analysisTier(ctx context.Context, key keys.Key, text string) (*AnalysisResult, Source, error) {
	if analysis, ok := c.analysisCache.Get(key); ok {
		return analysis, SourceCache, nil
	}

	ctx, span := tracing.StartSpan(ctx, "pipeline.analyze")
	defer span.End()
	start := time.Now()

	analysis, err := c.produceAnalysis(ctx, key, text)
	metrics.PipelineStageDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, "", err
	}

	c.analysisCache.Put(key, analysis, int64(analysis.WordCount))
	return analysis, SourceFresh, nil
}

func (c *Coordinator) produceAnalysis(ctx context.Context, key keys.Key, text string) (*AnalysisResult, error) {
	if !c.singleflight {
		return c.analyzer.Analyze(ctx, text)
	}

	v, err, _ := c.sf.Do("analysis:"+key.String(), func() (any, error) {
		return c.analyzer.Analyze(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return v.(*AnalysisResult), nil
}

func (c *Coordinator) artifactTier(ctx context.Context, key keys.Key, text string) (*artifacts.Record, Source, error) {
	if record, ok := c.artifactCache.Get(key); ok {
		return &record, SourceCache, nil
	}

	ctx, span := tracing.StartSpan(ctx, "pipeline.generate")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	}()

	data, err := c.generator.Generate(ctx, text)
	if err != nil {
		return nil, "", fmt.Errorf("generate artifact: %w", err)
	}

	path, err := c.store.Save(data)
	if err != nil {
		// Storage errors propagate; the entry is not cached so a later
		// request retries the save.
		return nil, "", fmt.Errorf("save artifact: %w", err)
	}

	record := artifacts.Record{
		Key:         key,
		StoragePath: path,
		CreatedAt:   time.Now(),
	}
	c.artifactCache.Put(key, record, int64(len(data)))

	// The durable index is advisory: a write failure only costs the
	// warm start after a restart, never the request.
	if c.durable != nil {
		if err := c.durable.Upsert(ctx, record); err != nil {
			c.log.Warn("durable index upsert failed", "key", key.Short(), "error", err)
		}
	}
	return &record, SourceFresh, nil
}
