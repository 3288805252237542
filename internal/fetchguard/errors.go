package fetchguard

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure so callers can decide what to report
// and what not to cache.
type Kind string

const (
	// KindTimeout means the fetch exceeded its per-call timeout.
	KindTimeout Kind = "timeout"
	// KindCircuitOpen means the circuit breaker rejected the call
	// without touching the network.
	KindCircuitOpen Kind = "circuit_open"
	// KindNetwork means a transport-level failure (DNS, reset, refused).
	KindNetwork Kind = "network"
	// KindRejected means the request was refused: an invalid or
	// disallowed URL, or a non-2xx response from the remote.
	KindRejected Kind = "rejected"
)

// FetchError is the typed failure returned by Guard.Fetch. Failures are
// never cached.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int // non-zero when a well-formed HTTP response was received
	Err        error

	retryAfter string // Retry-After header from a rejected response
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s: status %d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError unwraps err into a *FetchError if possible.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
