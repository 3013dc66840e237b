package stores

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache for the default guard evaluator.
func WithProgramCache(cache ProgramCache) ProcessOption {
	return func(cfg *processConfig) {
		cfg.programCache = cache
	}
}

// TTLProgramCache is a ProgramCache that expires programs after a TTL and
// holds at most a fixed number of them.
type TTLProgramCache struct {
	cache *ttlcache.Cache[string, any]
}

// NewTTLProgramCache builds a cache. A zero ttl keeps entries until they are
// evicted for capacity; a zero capacity is unbounded.
func NewTTLProgramCache(ttl time.Duration, capacity uint64) *TTLProgramCache {
	opts := []ttlcache.Option[string, any]{
		ttlcache.WithTTL[string, any](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, any](capacity))
	}
	return &TTLProgramCache{cache: ttlcache.New[string, any](opts...)}
}

// Get implements ProgramCache.
func (c *TTLProgramCache) Get(key string) (any, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set implements ProgramCache.
func (c *TTLProgramCache) Set(key string, value any) {
	c.cache.Set(key, value, ttlcache.DefaultTTL)
}

// Len reports the number of cached programs.
func (c *TTLProgramCache) Len() int {
	return c.cache.Len()
}
