// Package metadata – Cache
//
// Successful extractions are kept for DefaultCacheTTL under the string the
// caller passed in, before normalization. "350.org" and "https://350.org"
// are therefore separate entries. Fallback records are never cached so a
// recovered site is picked up on the next request.
package metadata

import (
	"sync"
	"time"

	"github.com/tbourn/go-org-enricher/internal/domain"
)

// DefaultCacheTTL is how long a successful extraction is served from cache.
const DefaultCacheTTL = 24 * time.Hour

// Cache is a process-lifetime TTL cache of metadata records keyed by the raw
// input string (not the normalized URL).
//
// Expiry is lazy: stale entries stay in the map until the next Put for the
// same key overwrites them. There is no eviction; the key space is bounded by
// the number of distinct organization websites.
//
// Cache is safe for concurrent use. Two concurrent misses for one key may
// both extract and both Put; entries are whole values, so the last write wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock injects the time source (tests use a fake clock).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache returns an empty cache. ttl <= 0 selects DefaultCacheTTL.
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		entries: make(map[string]domain.CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the record for rawURL if present and younger than the TTL.
func (c *Cache) Get(rawURL string) (domain.Metadata, bool) {
	c.mu.RLock()
	e, ok := c.entries[rawURL]
	c.mu.RUnlock()
	if !ok || !e.Fresh(c.now(), c.ttl) {
		return domain.Metadata{}, false
	}
	return e.Data, true
}

// Put stores rec for rawURL, stamped with the current time.
func (c *Cache) Put(rawURL string, rec domain.Metadata) {
	c.mu.Lock()
	c.entries[rawURL] = domain.CacheEntry{Data: rec, FetchedAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of entries, including logically expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
