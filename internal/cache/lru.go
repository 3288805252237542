package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/onnwee/pagelens/backend/internal/keys"
	"github.com/onnwee/pagelens/backend/internal/metrics"
)

// LRU is a bounded, TTL-aware key/value store with least-recently-used
// eviction. It backs all three pipeline tiers (fetch, analysis, artifact).
//
// Expiry is lazy: an expired entry is removed when a lookup touches it.
// PurgeExpired exists for the janitor, which reclaims entries that are
// never looked up again.
//
// All methods are safe for concurrent use. Get-then-Put on a miss is not
// atomic across the pair: two goroutines missing on the same key may both
// invoke an expensive producer. That duplicate work is accepted here; the
// coordinator offers singleflight dedup for callers that want at-most-once.
type LRU[V any] struct {
	mu         sync.Mutex
	tier       string
	maxEntries int
	ttl        time.Duration

	items map[keys.Key]*list.Element
	order *list.List // front = most recently used

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
	sizeHint    int64
}

type lruEntry[V any] struct {
	key            keys.Key
	value          V
	createdAt      time.Time
	lastAccessedAt time.Time
	sizeHint       int64
}

// NewLRU creates a cache holding at most maxEntries entries, each living
// at most ttl. A ttl of 0 disables time-based expiry. The tier name
// labels this instance's metrics.
func NewLRU[V any](tier string, maxEntries int, ttl time.Duration) (*LRU[V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("%w: maxEntries must be positive, got %d", ErrInvalidConfig, maxEntries)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("%w: ttl must not be negative, got %s", ErrInvalidConfig, ttl)
	}

	return &LRU[V]{
		tier:       tier,
		maxEntries: maxEntries,
		ttl:        ttl,
		items:      make(map[keys.Key]*list.Element),
		order:      list.New(),
	}, nil
}

// Get returns the value for key if present and not expired. An expired
// entry is removed before reporting absence. A hit refreshes the entry's
// last-access time and its recency rank.
func (c *LRU[V]) Get(key keys.Key) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.CacheMisses.WithLabelValues(c.tier).Inc()
		return zero, false
	}

	ent := elem.Value.(*lruEntry[V])
	if c.expired(ent, time.Now()) {
		c.removeElement(elem)
		c.expirations++
		c.misses++
		metrics.CacheExpirations.WithLabelValues(c.tier).Inc()
		metrics.CacheMisses.WithLabelValues(c.tier).Inc()
		return zero, false
	}

	ent.lastAccessedAt = time.Now()
	c.order.MoveToFront(elem)
	c.hits++
	metrics.CacheHits.WithLabelValues(c.tier).Inc()
	return ent.value, true
}

// Put inserts or overwrites the value for key. sizeHint is an optional
// relative weight reported through Stats; pass 1 when unknown. If the
// insert would exceed the entry bound, the least-recently-used entry is
// evicted first. Entries that were inserted together and never read age
// out in insertion order, so the tie between equal access times falls to
// the oldest createdAt.
func (c *LRU[V]) Put(key keys.Key, value V, sizeHint int64) {
	if sizeHint < 1 {
		sizeHint = 1
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*lruEntry[V])
		c.sizeHint += sizeHint - ent.sizeHint
		ent.value = value
		ent.createdAt = now
		ent.lastAccessedAt = now
		ent.sizeHint = sizeHint
		c.order.MoveToFront(elem)
		return
	}

	for len(c.items) >= c.maxEntries {
		c.evictOldest()
	}

	ent := &lruEntry[V]{
		key:            key,
		value:          value,
		createdAt:      now,
		lastAccessedAt: now,
		sizeHint:       sizeHint,
	}
	c.items[key] = c.order.PushFront(ent)
	c.sizeHint += sizeHint
	metrics.CacheItems.WithLabelValues(c.tier).Set(float64(len(c.items)))
}

// Invalidate removes key from the cache. Removing an absent key is a no-op.
func (c *LRU[V]) Invalidate(key keys.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Len returns the current number of entries, including any that have
// expired but not yet been reclaimed.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[keys.Key]*list.Element)
	c.order.Init()
	c.sizeHint = 0
	metrics.CacheItems.WithLabelValues(c.tier).Set(0)
}

// PurgeExpired removes every expired entry and returns how many were
// removed. Called by the janitor on its sweep interval.
func (c *LRU[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		ent := elem.Value.(*lruEntry[V])
		if c.expired(ent, now) {
			c.removeElement(elem)
			c.expirations++
			metrics.CacheExpirations.WithLabelValues(c.tier).Inc()
			removed++
		}
		elem = prev
	}
	return removed
}

// Keys returns a snapshot of the current keys in no particular order.
func (c *LRU[V]) Keys() []keys.Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]keys.Key, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	return out
}

// ForEach calls fn for every live (non-expired) entry without refreshing
// recency or access times. Used by the janitor to walk a tier without
// perturbing eviction order. fn must not call back into the cache.
func (c *LRU[V]) ForEach(fn func(key keys.Key, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, elem := range c.items {
		ent := elem.Value.(*lruEntry[V])
		if c.expired(ent, now) {
			continue
		}
		fn(ent.key, ent.value)
	}
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Items:       len(c.items),
		SizeHint:    c.sizeHint,
	}
}

func (c *LRU[V]) expired(ent *lruEntry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(ent.createdAt) > c.ttl
}

// evictOldest removes the entry at the back of the recency list.
// Caller must hold c.mu.
func (c *LRU[V]) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	c.evictions++
	metrics.CacheEvictions.WithLabelValues(c.tier).Inc()
}

// removeElement unlinks an entry from both the map and the recency list.
// Caller must hold c.mu.
func (c *LRU[V]) removeElement(elem *list.Element) {
	ent := elem.Value.(*lruEntry[V])
	c.order.Remove(elem)
	delete(c.items, ent.key)
	c.sizeHint -= ent.sizeHint
	metrics.CacheItems.WithLabelValues(c.tier).Set(float64(len(c.items)))
}
