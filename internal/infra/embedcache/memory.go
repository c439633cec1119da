// Package embedcache stores computed embeddings so restarts and repeated
// queries skip the embedding provider.
package embedcache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/offlineqa/internal/infra/embedder"
)

type entry struct {
	vector    []float32
	expiresAt time.Time
}

// MemoryCache keeps vectors in process memory.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]entry
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]entry)}
}

// GetMany returns the vectors found for keys. Expired entries are dropped.
func (c *MemoryCache) GetMany(_ context.Context, keys []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(keys))
	var expired []string
	c.mu.RLock()
	for _, key := range keys {
		item, ok := c.items[key]
		if !ok {
			continue
		}
		if hasExpired(item.expiresAt) {
			expired = append(expired, key)
			continue
		}
		out[key] = item.vector
	}
	c.mu.RUnlock()

	if len(expired) > 0 {
		c.mu.Lock()
		for _, key := range expired {
			delete(c.items, key)
		}
		c.mu.Unlock()
	}
	return out, nil
}

// SetMany stores vectors with an optional ttl.
func (c *MemoryCache) SetMany(_ context.Context, items map[string][]float32, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, vec := range items {
		c.items[key] = entry{vector: vec, expiresAt: exp}
	}
	return nil
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ embedder.Cache = (*MemoryCache)(nil)
