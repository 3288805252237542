package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/pagelens/backend/internal/artifacts"
	"github.com/onnwee/pagelens/backend/internal/cache"
	"github.com/onnwee/pagelens/backend/internal/circuitbreaker"
	"github.com/onnwee/pagelens/backend/internal/fetchguard"
	"github.com/onnwee/pagelens/backend/internal/keys"
)

// fakeFetcher serves canned bodies by URL and counts calls per URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
	delay  time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetchguard.RawContent, error) {
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.bodies[url]
	err := f.errs[url]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return &fetchguard.RawContent{URL: url, StatusCode: 404, FetchedAt: time.Now()}, nil
	}
	return &fetchguard.RawContent{
		URL:         url,
		Body:        []byte(body),
		ContentType: "text/plain",
		StatusCode:  200,
		FetchedAt:   time.Now(),
	}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// passthroughExtractor normalizes whitespace, like the real extractor,
// without parsing HTML.
type passthroughExtractor struct{}

func (passthroughExtractor) Extract(_ context.Context, c *fetchguard.RawContent) (string, error) {
	return strings.Join(strings.Fields(string(c.Body)), " "), nil
}

// countingAnalyzer records how many times Analyze actually ran.
type countingAnalyzer struct {
	calls atomic.Int64
	err   error
}

func (a *countingAnalyzer) Analyze(_ context.Context, text string) (*AnalysisResult, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return &AnalysisResult{
		Summary:   text,
		WordCount: len(strings.Fields(text)),
	}, nil
}

// countingGenerator emits the text back as artifact bytes.
type countingGenerator struct {
	calls atomic.Int64
	err   error
}

func (g *countingGenerator) Generate(_ context.Context, text string) ([]byte, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return []byte("<svg>" + text + "</svg>"), nil
}

// failingStore rejects every save.
type failingStore struct{}

func (failingStore) Save([]byte) (string, error) { return "", errors.New("disk full") }
func (failingStore) Delete(string) error         { return nil }

func (failingStore) List() ([]artifacts.FileInfo, error) { return nil, nil }

type testPipeline struct {
	coord     *Coordinator
	fetcher   *fakeFetcher
	analyzer  *countingAnalyzer
	generator *countingGenerator
	breaker   *circuitbreaker.CircuitBreaker
}

func newTestPipeline(t *testing.T, opts ...func(*testPipeline, *Config)) *testPipeline {
	t.Helper()

	fetchCache, err := cache.NewLRU[*fetchguard.RawContent]("test-fetch", 100, time.Minute)
	if err != nil {
		t.Fatalf("fetch cache: %v", err)
	}
	analysisCache, err := cache.NewLRU[*AnalysisResult]("test-analysis", 100, time.Minute)
	if err != nil {
		t.Fatalf("analysis cache: %v", err)
	}
	artifactCache, err := cache.NewLRU[artifacts.Record]("test-artifact", 100, time.Minute)
	if err != nil {
		t.Fatalf("artifact cache: %v", err)
	}

	tp := &testPipeline{
		fetcher:   newFakeFetcher(),
		analyzer:  &countingAnalyzer{},
		generator: &countingGenerator{},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "test-pipeline",
			FailureThreshold: 3,
			SuccessThreshold: 1,
			RecoveryTimeout:  time.Hour,
		}),
	}
	cfg := Config{}
	var store artifacts.Store
	store, err = artifacts.NewFSStore(t.TempDir(), ".svg")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	for _, opt := range opts {
		opt(tp, &cfg)
	}

	guard := fetchguard.New(tp.fetcher, tp.breaker, fetchguard.Config{
		Timeout:              time.Second,
		MaxRetries:           1,
		RetryBase:            5 * time.Millisecond,
		CountStatusAsFailure: true,
	})

	tp.coord = New(fetchCache, analysisCache, artifactCache,
		guard, passthroughExtractor{}, tp.analyzer, tp.generator, store, cfg)
	return tp
}

func TestPipeline_EndToEnd(t *testing.T) {
	tp := newTestPipeline(t)
	tp.fetcher.bodies["https://example.com/a"] = "alpha beta gamma"

	res, err := tp.coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if res.FetchSource != SourceFresh || res.AnalysisSource != SourceFresh || res.ArtifactSource != SourceFresh {
		t.Errorf("Expected all tiers fresh, got %s/%s/%s",
			res.FetchSource, res.AnalysisSource, res.ArtifactSource)
	}
	if res.Analysis == nil || res.Analysis.WordCount != 3 {
		t.Errorf("Unexpected analysis: %+v", res.Analysis)
	}
	if res.Artifact == nil || res.Artifact.StoragePath == "" {
		t.Error("Expected a stored artifact record")
	}
	if res.FetchKey == "" || res.AnalysisKey == "" {
		t.Error("Expected both keys to be set")
	}
	if res.ArtifactErr != nil {
		t.Errorf("Unexpected artifact error: %v", res.ArtifactErr)
	}

	// Second request is served fully from cache: no new fetch, analysis
	// or generation.
	res2, err := tp.coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Second process failed: %v", err)
	}
	if res2.FetchSource != SourceCache || res2.AnalysisSource != SourceCache || res2.ArtifactSource != SourceCache {
		t.Errorf("Expected all tiers cached, got %s/%s/%s",
			res2.FetchSource, res2.AnalysisSource, res2.ArtifactSource)
	}
	if tp.fetcher.callCount("https://example.com/a") != 1 {
		t.Errorf("Expected 1 fetch, got %d", tp.fetcher.callCount("https://example.com/a"))
	}
	if tp.analyzer.calls.Load() != 1 {
		t.Errorf("Expected 1 analysis, got %d", tp.analyzer.calls.Load())
	}
	if tp.generator.calls.Load() != 1 {
		t.Errorf("Expected 1 generation, got %d", tp.generator.calls.Load())
	}
}

func TestPipeline_ContentDedupAcrossURLs(t *testing.T) {
	tp := newTestPipeline(t)
	// Different URLs, identical extracted text
	tp.fetcher.bodies["https://example.com/a"] = "shared   content here"
	tp.fetcher.bodies["https://mirror.example.org/b"] = "shared content  here"

	resA, err := tp.coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Process a failed: %v", err)
	}
	resB, err := tp.coord.Process(context.Background(), "https://mirror.example.org/b")
	if err != nil {
		t.Fatalf("Process b failed: %v", err)
	}

	if resA.FetchKey == resB.FetchKey {
		t.Error("Expected distinct fetch keys for distinct URLs")
	}
	if resA.AnalysisKey != resB.AnalysisKey {
		t.Error("Expected one shared content key")
	}

	// The second URL's fetch is fresh but its downstream tiers hit
	if resB.FetchSource != SourceFresh {
		t.Errorf("Expected fresh fetch for second URL, got %s", resB.FetchSource)
	}
	if resB.AnalysisSource != SourceCache || resB.ArtifactSource != SourceCache {
		t.Errorf("Expected downstream hits for second URL, got %s/%s",
			resB.AnalysisSource, resB.ArtifactSource)
	}
	if tp.analyzer.calls.Load() != 1 {
		t.Errorf("Expected 1 analysis across both URLs, got %d", tp.analyzer.calls.Load())
	}
	if tp.coord.FetchCache().Len() != 2 {
		t.Errorf("Expected 2 fetch entries, got %d", tp.coord.FetchCache().Len())
	}
	if tp.coord.AnalysisCache().Len() != 1 {
		t.Errorf("Expected 1 analysis entry, got %d", tp.coord.AnalysisCache().Len())
	}
	if tp.coord.ArtifactCache().Len() != 1 {
		t.Errorf("Expected 1 artifact entry, got %d", tp.coord.ArtifactCache().Len())
	}
}

func TestPipeline_FetchFailureCachesNothing(t *testing.T) {
	tp := newTestPipeline(t)
	tp.fetcher.errs["https://example.com/down"] = errors.New("connection reset")

	_, err := tp.coord.Process(context.Background(), "https://example.com/down")
	if err == nil {
		t.Fatal("Expected fetch failure to surface")
	}
	ferr, ok := fetchguard.AsFetchError(err)
	if !ok || ferr.Kind != fetchguard.KindNetwork {
		t.Errorf("Expected network fetch error, got %v", err)
	}

	if tp.coord.FetchCache().Len() != 0 {
		t.Error("Expected nothing in the fetch tier after a failure")
	}
	if tp.coord.AnalysisCache().Len() != 0 || tp.coord.ArtifactCache().Len() != 0 {
		t.Error("Expected nothing in the downstream tiers after a failure")
	}

	// The failure is not remembered: a later request tries the network
	// again and succeeds.
	tp.fetcher.mu.Lock()
	delete(tp.fetcher.errs, "https://example.com/down")
	tp.fetcher.bodies["https://example.com/down"] = "recovered"
	tp.fetcher.mu.Unlock()

	res, err := tp.coord.Process(context.Background(), "https://example.com/down")
	if err != nil {
		t.Fatalf("Expected recovery, got: %v", err)
	}
	if res.FetchSource != SourceFresh {
		t.Errorf("Expected fresh fetch after failure, got %s", res.FetchSource)
	}
}

func TestPipeline_PartialSuccessOnArtifactFailure(t *testing.T) {
	tp := newTestPipeline(t, func(tp *testPipeline, cfg *Config) {
		tp.generator.err = errors.New("renderer crashed")
	})
	tp.fetcher.bodies["https://example.com/a"] = "some content"

	res, err := tp.coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Expected partial success, got: %v", err)
	}
	if res.ArtifactErr == nil {
		t.Fatal("Expected ArtifactErr to be set")
	}
	if res.Artifact != nil {
		t.Error("Expected no artifact record on failure")
	}
	if res.Analysis == nil {
		t.Error("Expected analysis to survive artifact failure")
	}

	// The failed artifact is not cached; once the generator recovers a
	// new request produces it.
	if tp.coord.ArtifactCache().Len() != 0 {
		t.Error("Expected artifact tier to stay empty after failure")
	}
	tp.generator.err = nil

	res, err = tp.coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.ArtifactErr != nil {
		t.Errorf("Expected artifact recovery, got: %v", res.ArtifactErr)
	}
	if res.Artifact == nil {
		t.Error("Expected artifact record after recovery")
	}
	if res.AnalysisSource != SourceCache {
		t.Errorf("Expected cached analysis on retry, got %s", res.AnalysisSource)
	}
}

func TestPipeline_StorageFailureIsPartial(t *testing.T) {
	fetchCache, _ := cache.NewLRU[*fetchguard.RawContent]("test-fetch", 100, time.Minute)
	analysisCache, _ := cache.NewLRU[*AnalysisResult]("test-analysis", 100, time.Minute)
	artifactCache, _ := cache.NewLRU[artifacts.Record]("test-artifact", 100, time.Minute)

	fetcher := newFakeFetcher()
	fetcher.bodies["https://example.com/a"] = "content"
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "test-storage"})
	guard := fetchguard.New(fetcher, cb, fetchguard.Config{Timeout: time.Second, MaxRetries: 1})

	coord := New(fetchCache, analysisCache, artifactCache,
		guard, passthroughExtractor{}, &countingAnalyzer{}, &countingGenerator{}, failingStore{}, Config{})

	res, err := coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Expected partial success, got: %v", err)
	}
	if res.ArtifactErr == nil {
		t.Fatal("Expected storage failure to be reported")
	}
	if artifactCache.Len() != 0 {
		t.Error("Expected no artifact entry when the save failed")
	}
}

func TestPipeline_AnalysisFailureSurfaces(t *testing.T) {
	tp := newTestPipeline(t, func(tp *testPipeline, cfg *Config) {
		tp.analyzer.err = errors.New("model exploded")
	})
	tp.fetcher.bodies["https://example.com/a"] = "content"

	_, err := tp.coord.Process(context.Background(), "https://example.com/a")
	if err == nil {
		t.Fatal("Expected analysis failure to surface")
	}
	if tp.coord.AnalysisCache().Len() != 0 {
		t.Error("Expected no analysis entry after failure")
	}
	// The successful fetch is still cached
	if tp.coord.FetchCache().Len() != 1 {
		t.Error("Expected the fetch result to be cached")
	}
}

func TestPipeline_Invalidate(t *testing.T) {
	tp := newTestPipeline(t)
	tp.fetcher.bodies["https://example.com/a"] = "invalidate me"

	if _, err := tp.coord.Process(context.Background(), "https://example.com/a"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	tp.coord.Invalidate(context.Background(), "https://example.com/a")

	if tp.coord.FetchCache().Len() != 0 {
		t.Error("Expected fetch tier to be empty after invalidation")
	}
	if tp.coord.AnalysisCache().Len() != 0 {
		t.Error("Expected analysis tier to be empty after invalidation")
	}
	if tp.coord.ArtifactCache().Len() != 0 {
		t.Error("Expected artifact tier to be empty after invalidation")
	}

	res, err := tp.coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.FetchSource != SourceFresh {
		t.Errorf("Expected fresh fetch after invalidation, got %s", res.FetchSource)
	}
}

func TestPipeline_SingleflightCollapsesConcurrentMisses(t *testing.T) {
	tp := newTestPipeline(t, func(tp *testPipeline, cfg *Config) {
		cfg.Singleflight = true
		tp.fetcher.delay = 50 * time.Millisecond
	})
	tp.fetcher.bodies["https://example.com/slow"] = "slow shared content"

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tp.coord.Process(context.Background(), "https://example.com/slow")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	// All callers are parked in the shared slow fetch, so exactly one
	// network call happens. Analysis dedup is best-effort (only calls
	// overlapping in time collapse) and is not asserted here.
	if got := tp.fetcher.callCount("https://example.com/slow"); got != 1 {
		t.Errorf("Expected singleflight to collapse to 1 fetch, got %d", got)
	}
}

func TestPipeline_KeysAreContentHashes(t *testing.T) {
	tp := newTestPipeline(t)
	tp.fetcher.bodies["https://example.com/a"] = "known content"

	res, err := tp.coord.Process(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.FetchKey != keys.FromURL("https://example.com/a") {
		t.Error("Expected fetch key to be the URL hash")
	}
	if res.AnalysisKey != keys.FromText("known content") {
		t.Error("Expected analysis key to be the content hash")
	}
	if fmt.Sprintf("%s", res.AnalysisKey) == fmt.Sprintf("%s", res.FetchKey) {
		t.Error("Expected tier keys to differ")
	}
}
