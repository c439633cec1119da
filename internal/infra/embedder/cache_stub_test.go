package embedder

import (
	"context"
	"time"
)

type mapCache struct {
	items map[string][]float32
	err   error
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]float32)}
}

func (m *mapCache) GetMany(_ context.Context, keys []string) (map[string][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string][]float32)
	for _, key := range keys {
		if vec, ok := m.items[key]; ok {
			out[key] = vec
		}
	}
	return out, nil
}

func (m *mapCache) SetMany(_ context.Context, items map[string][]float32, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	for key, vec := range items {
		m.items[key] = vec
	}
	return nil
}
