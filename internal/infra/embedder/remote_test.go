package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/offlineqa/internal/infra/llm/chatgpt"
)

func TestOllamaEmbedderBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		calls.Add(1)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "all-minilm", req.Model)
		resp := ollamaEmbedResponse{}
		for _, text := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(len(text)), 1})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "all-minilm", 2, discardLogger())
	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 1}, {2, 1}, {3, 1}}, vecs)
	require.EqualValues(t, 2, calls.Load())
}

func TestOllamaEmbedderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "", 0, discardLogger()).Embed(context.Background(), []string{"a"})
	require.ErrorContains(t, err, "status 404")
}

func TestOpenAIEmbedderSplitsByBatchSizeAndOrdersByIndex(t *testing.T) {
	client := &stubClient{}
	e := NewOpenAIEmbedder(client, "text-embedding-3-small", 0, 2, discardLogger())

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1}, {2}, {3}}, vecs)
	require.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, client.batches)
}

func TestOpenAIEmbedderCountMismatch(t *testing.T) {
	client := &stubClient{drop: true}
	_, err := NewOpenAIEmbedder(client, "m", 0, 0, discardLogger()).Embed(context.Background(), []string{"a", "b"})
	require.ErrorContains(t, err, "count mismatch")
}

func TestEstimateTokens(t *testing.T) {
	require.Zero(t, estimateTokens(""))
	require.Equal(t, 3, estimateTokens("a b c"))
	require.Equal(t, 5, estimateTokens(strings.Repeat("x", 10)))
}

func TestCachedEmbedderServesHits(t *testing.T) {
	cache := newMapCache()
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache, "m", 0, discardLogger())

	first, err := e.Embed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), []string{"bb", "ccc", "a"})
	require.NoError(t, err)

	require.Equal(t, first[1], second[0])
	require.Equal(t, first[0], second[2])
	require.Equal(t, []float32{3}, second[1])
	require.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, inner.calls)
}

func TestCachedEmbedderBypassesBrokenCache(t *testing.T) {
	cache := newMapCache()
	cache.err = errors.New("valkey unavailable")
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache, "m", 0, discardLogger())

	vecs, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1}}, vecs)
}

func TestCachedEmbedderKeysByModel(t *testing.T) {
	a := NewCachedEmbedder(&countingEmbedder{}, newMapCache(), "model-a", 0, discardLogger())
	b := NewCachedEmbedder(&countingEmbedder{}, newMapCache(), "model-b", 0, discardLogger())
	require.NotEqual(t, a.key("text"), b.key("text"))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubClient struct {
	batches [][]string
	drop    bool
}

func (s *stubClient) CreateEmbedding(_ context.Context, req chatgpt.EmbeddingRequest) (chatgpt.EmbeddingResponse, error) {
	s.batches = append(s.batches, append([]string(nil), req.Input...))
	var resp chatgpt.EmbeddingResponse
	resp.Data = make([]struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}, len(req.Input))
	// reversed to prove the embedder sorts by index
	for i := range req.Input {
		j := len(req.Input) - 1 - i
		resp.Data[i].Index = j
		resp.Data[i].Embedding = []float32{float32(len(req.Input[j]))}
	}
	if s.drop {
		resp.Data = resp.Data[:1]
	}
	return resp, nil
}

type countingEmbedder struct {
	calls [][]string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}
