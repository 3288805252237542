// Package cache provides the bounded, TTL-aware stores used by the
// analysis pipeline: a deterministic generic LRU for the fetch, analysis
// and artifact tiers, and a ristretto-backed byte cache for serialized
// HTTP responses.
package cache

import (
	"errors"
	"time"
)

// ErrInvalidConfig is returned when a cache is constructed with a
// non-positive entry bound or a negative TTL.
var ErrInvalidConfig = errors.New("cache: invalid configuration")

// Stats represents cache statistics.
type Stats struct {
	Hits        uint64 // Total cache hits
	Misses      uint64 // Total cache misses
	Evictions   uint64 // Total capacity evictions
	Expirations uint64 // Total TTL expirations
	Items       int    // Current number of entries
	SizeHint    int64  // Sum of entry size hints
}

// ByteCache is the interface for caching serialized data with TTL,
// consumed by the HTTP layer.
type ByteCache interface {
	// Get retrieves a value from the cache by key.
	// Returns the value and true if found and not expired, otherwise nil and false.
	Get(key string) ([]byte, bool)

	// Set stores a value in the cache with the given key and TTL.
	// TTL of 0 means use the default cache TTL.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()
}
