package qa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"

	apperrors "github.com/yanqian/offlineqa/pkg/errors"
	"github.com/yanqian/offlineqa/pkg/metrics"
)

// Chatbot answers queries from a fixed Q&A dataset by nearest-question lookup.
type Chatbot interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
	GetAnswer(ctx context.Context, query string, threshold float64) (string, error)
	Chat(ctx context.Context, query string, showConfidence bool) (ChatResponse, error)
	Stats() Stats
	Threshold() float64
}

type chatbot struct {
	cfg      Config
	dataset  Dataset
	dims     int
	embedder Embedder
	index    Index
	stats    metrics.IndexStats
	logger   *slog.Logger
}

// NewChatbot loads the dataset, embeds every question and builds the index.
// Any failure aborts construction; there is no lazy or partial chatbot.
func NewChatbot(ctx context.Context, cfg Config, loader DatasetLoader, embedder Embedder, index Index, logger *slog.Logger) (Chatbot, error) {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	log := logger.With("component", "qa.chatbot")
	start := time.Now()

	dataset, err := loader.Load(ctx, cfg.DatasetPath)
	if err != nil {
		return nil, err
	}

	questions := make([]string, dataset.Len())
	for i, rec := range dataset.Records {
		questions[i] = rec.Question
	}

	var matrix [][]float32
	if len(questions) > 0 {
		matrix, err = embedder.Embed(ctx, questions)
		if err != nil {
			return nil, apperrors.Wrap("embedding_error", "embedding dataset questions failed", err)
		}
	}
	dims, err := validateMatrix(matrix, dataset.Len())
	if err != nil {
		return nil, err
	}

	version := indexVersion(dataset.Fingerprint, cfg.EmbeddingModel)
	if err := index.Build(ctx, version, matrix); err != nil {
		return nil, apperrors.Wrap("index_error", "building similarity index failed", err)
	}
	if index.Len() != dataset.Len() {
		return nil, apperrors.Wrap("index_error", fmt.Sprintf("index holds %d vectors, dataset has %d records", index.Len(), dataset.Len()), nil)
	}

	elapsed := time.Since(start)
	stats := metrics.IndexStats{
		Records:       dataset.Len(),
		Dimensions:    dims,
		Backend:       cfg.IndexBackend,
		Model:         cfg.EmbeddingModel,
		Version:       version,
		BuildDuration: elapsed,
		BuildMs:       elapsed.Milliseconds(),
	}
	log.Info("chatbot ready",
		"records", stats.Records,
		"dimensions", stats.Dimensions,
		"backend", stats.Backend,
		"model", stats.Model,
		"build_ms", stats.BuildMs,
	)

	return &chatbot{
		cfg:      cfg,
		dataset:  dataset,
		dims:     dims,
		embedder: embedder,
		index:    index,
		stats:    stats,
		logger:   log,
	}, nil
}

func (c *chatbot) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK < 1 {
		return nil, apperrors.Wrap("invalid_input", "topK must be at least 1", nil)
	}
	if c.dataset.Len() == 0 {
		return nil, nil
	}

	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperrors.Wrap("embedding_error", "embedding query failed", err)
	}
	if len(vectors) != 1 {
		return nil, apperrors.Wrap("embedding_error", fmt.Sprintf("expected 1 query vector, got %d", len(vectors)), nil)
	}
	if len(vectors[0]) != c.dims {
		return nil, apperrors.Wrap("embedding_error", fmt.Sprintf("query vector has %d dimensions, index has %d", len(vectors[0]), c.dims), nil)
	}

	k := topK
	if k > c.dataset.Len() {
		k = c.dataset.Len()
	}
	hits, err := c.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, apperrors.Wrap("index_error", "similarity search failed", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= c.dataset.Len() {
			return nil, apperrors.Wrap("index_error", fmt.Sprintf("index returned unknown position %d", hit.Position), nil)
		}
		rec := c.dataset.Records[hit.Position]
		results = append(results, SearchResult{
			Position:   hit.Position,
			Question:   rec.Question,
			Answer:     rec.Answer,
			Confidence: ConfidenceFromDistance(hit.Distance),
			Distance:   hit.Distance,
		})
	}
	c.logger.Debug("search completed", "top_k", topK, "results", len(results))
	return results, nil
}

func (c *chatbot) GetAnswer(ctx context.Context, query string, threshold float64) (string, error) {
	results, err := c.Search(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return FallbackAnswer, nil
	}
	best := results[0]
	if best.Confidence < threshold {
		return LowConfidencePrefix + best.Answer, nil
	}
	return best.Answer, nil
}

func (c *chatbot) Chat(ctx context.Context, query string, showConfidence bool) (ChatResponse, error) {
	results, err := c.Search(ctx, query, 1)
	if err != nil {
		return ChatResponse{}, err
	}
	if len(results) == 0 {
		return ChatResponse{
			Answer: FallbackAnswer,
			Details: mo.Some(MatchDetails{
				Confidence:      0,
				MatchedQuestion: mo.None[string](),
			}),
		}, nil
	}
	best := results[0]
	if !showConfidence {
		return ChatResponse{Answer: best.Answer, Details: mo.None[MatchDetails]()}, nil
	}
	return ChatResponse{
		Answer: best.Answer,
		Details: mo.Some(MatchDetails{
			Confidence:      best.Confidence,
			MatchedQuestion: mo.Some(best.Question),
		}),
	}, nil
}

func (c *chatbot) Stats() Stats {
	return Stats{
		Records:    c.stats.Records,
		Dimensions: c.stats.Dimensions,
		Model:      c.stats.Model,
		Backend:    c.stats.Backend,
		Version:    c.stats.Version,
	}
}

func (c *chatbot) Threshold() float64 {
	return c.cfg.ConfidenceThreshold
}

func validateMatrix(matrix [][]float32, records int) (int, error) {
	if len(matrix) != records {
		return 0, apperrors.Wrap("embedding_error", fmt.Sprintf("embedder returned %d vectors for %d questions", len(matrix), records), nil)
	}
	if records == 0 {
		return 0, nil
	}
	dims := len(matrix[0])
	if dims == 0 {
		return 0, apperrors.Wrap("embedding_error", "embedder returned empty vectors", nil)
	}
	for i, vec := range matrix {
		if len(vec) != dims {
			return 0, apperrors.Wrap("embedding_error", fmt.Sprintf("vector %d has %d dimensions, expected %d", i, len(vec), dims), nil)
		}
	}
	return dims, nil
}

func indexVersion(fingerprint, model string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(fingerprint) + "\x00" + strings.TrimSpace(model)))
	return hex.EncodeToString(sum[:])
}
