package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yanqian/offlineqa/internal/infra/llm/chatgpt"
)

type embeddingClient interface {
	CreateEmbedding(ctx context.Context, req chatgpt.EmbeddingRequest) (chatgpt.EmbeddingResponse, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	client     embeddingClient
	model      string
	dimensions int
	batchSize  int
	logger     *slog.Logger
}

// NewOpenAIEmbedder constructs an embedder backed by the API client.
func NewOpenAIEmbedder(client embeddingClient, model string, dimensions, batchSize int, logger *slog.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 256
	}
	return &OpenAIEmbedder{
		client:     client,
		model:      strings.TrimSpace(model),
		dimensions: dimensions,
		batchSize:  batchSize,
		logger:     logger.With("component", "embedder.openai"),
	}
}

// Embed requests embeddings for texts, splitting by item count and an
// estimated token budget.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out            = make([][]float32, 0, len(texts))
		batch          []string
		batchTokens    int
		maxBatchTokens = 200_000 // provider cap is 300k
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{
			Model:      e.model,
			Input:      batch,
			Dimensions: e.dimensions,
		})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding result count mismatch: expected %d got %d", len(batch), len(resp.Data))
		}
		data := resp.Data
		sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		for _, item := range data {
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			out = append(out, vec)
		}
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := estimateTokens(text)
		if tokens > maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: estimated tokens=%d", tokens)
		}
		if len(batch) > 0 && (batchTokens+tokens > maxBatchTokens || len(batch) >= e.batchSize) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// estimateTokens over-counts: about one token per two runes, never below the
// word count.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byRunes := (utf8.RuneCountInString(text) + 1) / 2
	words := len(strings.Fields(text))
	if byRunes < words {
		return words
	}
	return byRunes
}
