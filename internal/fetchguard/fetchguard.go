// Package fetchguard wraps the raw external fetch with a per-call
// timeout, bounded retries for transient failures, and a circuit
// breaker. It is independent of the analysis pipeline and composable
// with any RawFetcher implementation.
package fetchguard

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/pagelens/backend/internal/circuitbreaker"
	"github.com/onnwee/pagelens/backend/internal/logger"
	"github.com/onnwee/pagelens/backend/internal/metrics"
)

// RawContent is the result of a successful external fetch.
type RawContent struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
	FetchedAt   time.Time

	// RetryAfter is the raw Retry-After header value, if the response
	// carried one. Only consulted on 429/5xx responses.
	RetryAfter string
}

// RawFetcher performs the actual network call. Implementations return a
// RawContent for any well-formed HTTP response regardless of status, and
// an error only for transport-level failures. The context carries the
// per-attempt deadline.
type RawFetcher interface {
	Fetch(ctx context.Context, url string) (*RawContent, error)
}

// Config holds fetch guard configuration.
type Config struct {
	Timeout    time.Duration // per-attempt timeout, mandatory
	MaxRetries int           // total attempts, minimum 1
	RetryBase  time.Duration // base delay between attempts

	// CountStatusAsFailure decides whether a well-formed non-2xx
	// response trips the breaker. When false, reaching the remote at
	// all counts as success for circuit purposes (the caller still
	// gets a rejected error).
	CountStatusAsFailure bool

	// Limiter, when set, paces outbound attempts.
	Limiter *rate.Limiter
}

// Guard composes timeout, retry and circuit breaking around a RawFetcher.
type Guard struct {
	fetcher RawFetcher
	breaker *circuitbreaker.CircuitBreaker
	cfg     Config
}

// New creates a guard around fetcher. The breaker is owned by the caller
// so one breaker can be shared or inspected externally.
func New(fetcher RawFetcher, breaker *circuitbreaker.CircuitBreaker, cfg Config) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 300 * time.Millisecond
	}

	return &Guard{
		fetcher: fetcher,
		breaker: breaker,
		cfg:     cfg,
	}
}

// Fetch retrieves url through the guard. On failure it returns a typed
// *FetchError; transient failures (network errors, timeouts, 429/5xx)
// are retried up to MaxRetries, other 4xx responses fail fast.
func (g *Guard) Fetch(ctx context.Context, url string) (*RawContent, error) {
	if err := ValidateURL(url); err != nil {
		return nil, &FetchError{Kind: KindRejected, URL: url, Err: err}
	}

	if err := g.breaker.Allow(); err != nil {
		return nil, &FetchError{Kind: KindCircuitOpen, URL: url, Err: err}
	}

	start := time.Now()
	content, ferr := g.fetchWithRetries(ctx, url)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if ferr == nil {
		g.breaker.RecordSuccess()
		return content, nil
	}

	// A well-formed error response still reached the remote system;
	// whether that trips the breaker is a policy choice.
	if ferr.Kind == KindRejected && ferr.StatusCode != 0 && !g.cfg.CountStatusAsFailure {
		g.breaker.RecordSuccess()
	} else {
		g.breaker.RecordFailure()
	}
	return nil, ferr
}

// fetchWithRetries runs the attempt loop. It returns either content with
// a 2xx status or a classified error.
func (g *Guard) fetchWithRetries(ctx context.Context, url string) (*RawContent, *FetchError) {
	var last *FetchError

	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		if g.cfg.Limiter != nil {
			if err := g.cfg.Limiter.Wait(ctx); err != nil {
				return nil, &FetchError{Kind: KindNetwork, URL: url, Err: err}
			}
		}

		content, ferr := g.attempt(ctx, url)
		if ferr == nil {
			if attempt > 1 {
				logger.Debug("fetch succeeded after retry", "url", url, "attempt", attempt)
			}
			metrics.FetchRequests.WithLabelValues("success").Inc()
			return content, nil
		}
		last = ferr

		if !retryable(ferr) || attempt == g.cfg.MaxRetries {
			metrics.FetchRequests.WithLabelValues("error").Inc()
			return nil, ferr
		}
		if ctx.Err() != nil {
			return nil, ferr
		}

		metrics.FetchRequests.WithLabelValues("retry").Inc()
		metrics.FetchRetries.Inc()

		// backoff with jitter, unless the remote told us how long to wait
		jitter := time.Duration(rand.Intn(200)) * time.Millisecond
		delay := g.cfg.RetryBase*time.Duration(attempt) + jitter
		if ra := parseRetryAfter(ferr.retryAfter); ra > 0 {
			delay = ra
			metrics.FetchRetryAfterWaits.Observe(ra.Seconds())
		}
		logger.Debug("fetch backing off", "url", url, "attempt", attempt, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &FetchError{Kind: KindNetwork, URL: url, Err: ctx.Err()}
		}
	}

	return nil, last
}

// attempt performs a single fetch under the per-attempt timeout and
// classifies the outcome.
func (g *Guard) attempt(ctx context.Context, url string) (*RawContent, *FetchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	content, err := g.fetcher.Fetch(attemptCtx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &FetchError{Kind: KindTimeout, URL: url, Err: err}
		}
		return nil, &FetchError{Kind: KindNetwork, URL: url, Err: err}
	}

	if content.StatusCode >= 200 && content.StatusCode < 300 {
		return content, nil
	}

	return nil, &FetchError{Kind: KindRejected, URL: url, StatusCode: content.StatusCode, retryAfter: content.RetryAfter}
}

// parseRetryAfter interprets a Retry-After value either as delay seconds
// or as an HTTP date. Unparseable or past values yield zero.
func parseRetryAfter(ra string) time.Duration {
	if ra == "" {
		return 0
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if delta := time.Until(t); delta > 0 {
			return delta
		}
	}
	return 0
}

// retryable reports whether a failure is transient: network errors,
// timeouts, and 429/5xx responses. Other client errors are not retried.
func retryable(ferr *FetchError) bool {
	switch ferr.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindRejected:
		return ferr.StatusCode == http.StatusTooManyRequests || ferr.StatusCode >= 500
	default:
		return false
	}
}
