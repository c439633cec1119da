package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "nomic-embed-text"
	// DefaultOllamaBaseURL is the local Ollama API.
	DefaultOllamaBaseURL = "http://localhost:11434"
)

// OllamaEmbedder calls a local Ollama server, so embeddings never leave the
// machine.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	batchSize  int
	httpClient *http.Client
	logger     *slog.Logger
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder constructs the embedder.
func NewOllamaEmbedder(baseURL, model string, batchSize int, logger *slog.Logger) *OllamaEmbedder {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOllamaModel
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaEmbedder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "embedder.ollama"),
	}
}

// Embed sends texts in batches to /api/embed.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	e.logger.Debug("ollama embeddings created", "texts", len(texts), "model", e.model)
	return out, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(payload))
	}
	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if len(decoded.Embeddings) != len(batch) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(decoded.Embeddings), len(batch))
	}
	return decoded.Embeddings, nil
}
