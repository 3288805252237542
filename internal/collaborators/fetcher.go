// Package collaborators holds the default implementations of the
// pipeline's narrow collaborator interfaces: the HTTP fetcher, the HTML
// text extractor, the analyzer and the artifact generator. Each is
// deliberately thin; the pipeline treats them as opaque.
package collaborators

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/onnwee/pagelens/backend/internal/fetchguard"
)

// maxBodyBytes caps how much of a remote document is read. Pages larger
// than this are truncated rather than failed.
const maxBodyBytes = 10 << 20

// HTTPFetcher is the production RawFetcher backed by net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher. The client carries no timeout of its
// own; the guard's per-attempt context deadline governs each call.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: userAgent,
	}
}

// Fetch performs a single GET. Any well-formed response is returned with
// its status code; only transport failures produce an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*fetchguard.RawContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &fetchguard.RawContent{
		URL:         url,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FetchedAt:   time.Now(),
		RetryAfter:  resp.Header.Get("Retry-After"),
	}, nil
}

var _ fetchguard.RawFetcher = (*HTTPFetcher)(nil)
