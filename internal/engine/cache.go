package engine

import (
	"sync"

	"github.com/trustlens/trustlens/internal/model"
)

// Cache memoizes analysis results by canonical triple key. Implementations
// must be safe for concurrent use. Keys are only ever added, never replaced
// with different values, so a plain map behind a mutex suffices.
type Cache interface {
	Get(key string) (model.AuditResult, bool)
	Set(key string, result model.AuditResult)
	Has(key string) bool
}

// MemoryCache is the default in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	results map[string]model.AuditResult
}

// NewMemoryCache creates an empty result cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{results: make(map[string]model.AuditResult)}
}

func (c *MemoryCache) Get(key string) (model.AuditResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.results[key]
	return res, ok
}

func (c *MemoryCache) Set(key string, result model.AuditResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
}

func (c *MemoryCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.results[key]
	return ok
}

// Len returns the number of cached results.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
