package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/authstore/core"
)

// CacheStats are simple counters for cache behavior.
// These are intended for diagnostics and monitoring.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// InMemoryCache holds session lookups keyed by stored session token
type InMemoryCache struct {
	cache   map[string]*cachedRecord
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	// counters
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type cachedRecord struct {
	value    core.SessionAndUser
	cachedAt time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache(c core.CacheConfig) *InMemoryCache {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxSize == 0 {
		c.MaxSize = 500
	}

	return &InMemoryCache{
		cache:   make(map[string]*cachedRecord),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     time.Now,
	}
}

// Get returns a copy of the cached lookup or core.ErrCacheNotFound
func (c *InMemoryCache) Get(token string) (*core.SessionAndUser, error) {
	c.mu.RLock()
	record, exists := c.cache[token]
	c.mu.RUnlock()

	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return nil, core.ErrCacheNotFound
	}

	if c.now().Sub(record.cachedAt) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		c.Delete(token)
		return nil, core.ErrCacheNotFound
	}

	atomic.AddInt64(&c.hits, 1)
	return clone(record.value), nil
}

// Set stores a copy of v
func (c *InMemoryCache) Set(token string, v *core.SessionAndUser) {
	if v == nil || v.Session == nil || v.User == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction if full
	if _, replacing := c.cache[token]; !replacing && len(c.cache) >= c.maxSize {
		for k := range c.cache {
			delete(c.cache, k)
			atomic.AddInt64(&c.evictions, 1)
			break
		}
	}

	c.cache[token] = &cachedRecord{
		value:    *clone(*v),
		cachedAt: c.now(),
	}

	atomic.AddInt64(&c.sets, 1)
}

// Delete removes a cached lookup
func (c *InMemoryCache) Delete(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.cache[token]; existed {
		delete(c.cache, token)
		atomic.AddInt64(&c.deletes, 1)
	}
}

// DeleteByUser removes every cached lookup that belongs to userID
func (c *InMemoryCache) DeleteByUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, record := range c.cache {
		if record.value.User.ID == userID {
			delete(c.cache, k)
			removed++
		}
	}
	atomic.AddInt64(&c.deletes, int64(removed))
	return removed
}

// Clear removes all entries
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cachedRecord)
}

// Len returns the number of cached entries
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats returns cache statistics
func (c *InMemoryCache) Stats() CacheStats {
	return CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Sets:      atomic.LoadInt64(&c.sets),
		Deletes:   atomic.LoadInt64(&c.deletes),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}

func clone(v core.SessionAndUser) *core.SessionAndUser {
	s := *v.Session
	u := *v.User
	return &core.SessionAndUser{Session: &s, User: &u}
}
