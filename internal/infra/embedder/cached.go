package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Cache stores vectors by key.
type Cache interface {
	GetMany(ctx context.Context, keys []string) (map[string][]float32, error)
	SetMany(ctx context.Context, items map[string][]float32, ttl time.Duration) error
}

type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder serves repeated texts from a cache and only sends misses to
// the wrapped provider. Cache failures are logged and bypassed.
type CachedEmbedder struct {
	next   embedder
	cache  Cache
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedder wraps next. model namespaces the keys so switching models
// never returns stale vectors.
func NewCachedEmbedder(next embedder, cache Cache, model string, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		model:  model,
		ttl:    ttl,
		logger: logger.With("component", "embedder.cache"),
	}
}

// Embed returns vectors in input order.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = e.key(text)
	}

	hits, err := e.cache.GetMany(ctx, keys)
	if err != nil {
		e.logger.Warn("embedding cache read failed", "error", err)
		hits = nil
	}

	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, key := range keys {
		if vec, ok := hits[key]; ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, texts[i])
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}
	fresh := make(map[string][]float32, len(vectors))
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		fresh[keys[missIdx[j]]] = vec
	}
	if err := e.cache.SetMany(ctx, fresh, e.ttl); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}
	e.logger.Debug("embedding cache", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.model + ":" + hex.EncodeToString(sum[:])
}
