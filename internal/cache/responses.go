package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// ResponseCache is a size-bounded cache for serialized HTTP responses,
// backed by ristretto. Unlike the pipeline tiers it is approximate:
// ristretto's admission policy may drop writes under pressure, which is
// fine for a response cache and keeps hot-path lookups contention-free.
type ResponseCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

type responseItem struct {
	data      []byte
	expiresAt time.Time
}

// NewResponseCache creates a response cache bounded by maxSizeMB.
func NewResponseCache(maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*ResponseCache, error) {
	// NumCounters should be ~10x the number of entries per the ristretto docs.
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &ResponseCache{
		cache:      rc,
		defaultTTL: defaultTTL,
	}, nil
}

// Get retrieves a serialized response by key.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}

	item, ok := val.(*responseItem)
	if !ok {
		c.cache.Del(key)
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		c.cache.Del(key)
		return nil, false
	}

	return item.data, true
}

// Set stores a serialized response. TTL of 0 uses the default TTL.
func (c *ResponseCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	item := &responseItem{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	}

	// Cost is the payload size; ristretto handles eviction internally.
	_ = c.cache.Set(key, item, int64(len(value)))
	c.cache.Wait()
}

// Delete removes a value from the cache.
func (c *ResponseCache) Delete(key string) {
	c.cache.Del(key)
}

// Clear removes all values from the cache.
func (c *ResponseCache) Clear() {
	c.cache.Clear()
}

// Close releases the cache's resources.
func (c *ResponseCache) Close() {
	c.cache.Close()
}

var _ ByteCache = (*ResponseCache)(nil)
