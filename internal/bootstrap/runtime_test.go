package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/offlineqa/internal/domain/conversation"
	"github.com/yanqian/offlineqa/internal/infra/config"
	"github.com/yanqian/offlineqa/internal/infra/embedder"
	apperrors "github.com/yanqian/offlineqa/pkg/errors"
)

const testDataset = `[
  {"question": "What is PM-KISAN?", "answer": "An income support scheme."},
  {"question": "When should I sow wheat?", "answer": "In November."}
]`

func TestNewRuntimeAnswersFromDataset(t *testing.T) {
	cfg := newTestConfig(t, testDataset)

	rt, cleanup, err := NewRuntime(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)
	defer cleanup()

	stats := rt.Chatbot.Stats()
	require.Equal(t, 2, stats.Records)
	require.Equal(t, embedder.DefaultHashingDimensions, stats.Dimensions)
	require.Equal(t, "memory", stats.Backend)

	answer, err := rt.Chatbot.GetAnswer(context.Background(), "What is PM-KISAN?", cfg.Chat.ConfidenceThreshold)
	require.NoError(t, err)
	require.Equal(t, "An income support scheme.", answer)

	resp, err := rt.Conversation.Reply(context.Background(), conversation.Request{Query: "namaste"})
	require.NoError(t, err)
	require.Equal(t, conversation.SourceSmalltalk, resp.Source)
	require.NotEmpty(t, resp.SessionID)
}

func TestNewRuntimeFailsOnMissingDataset(t *testing.T) {
	cfg := newTestConfig(t, testDataset)
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.json")

	_, _, err := NewRuntime(context.Background(), cfg, newTestLogger())
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "dataset_not_found"))
}

func TestEmbeddingModelIDChangesWithProvider(t *testing.T) {
	cfg := &config.Config{Embedding: config.EmbeddingConfig{Provider: "hashing"}}
	hashing := EmbeddingModelID(cfg)
	require.Equal(t, "feature-hash-v1/384", hashing)

	cfg.Embedding = config.EmbeddingConfig{Provider: "ollama"}
	require.Equal(t, "ollama/nomic-embed-text", EmbeddingModelID(cfg))

	cfg.Embedding = config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small"}
	require.Equal(t, "openai/text-embedding-3-small", EmbeddingModelID(cfg))
}

func TestProvideEmbedderRejectsUnknownProvider(t *testing.T) {
	cfg := &config.Config{Embedding: config.EmbeddingConfig{Provider: "word2vec"}}
	_, err := ProvideEmbedder(cfg, nil, newTestLogger())
	require.Error(t, err)
}

func TestProvideSessionStoreFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{Valkey: config.ValkeyConfig{Enabled: true, Addr: "localhost:6379"}}
	require.NotNil(t, ProvideSessionStore(cfg, nil))
}

func newTestConfig(t *testing.T, dataset string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qa.json")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o600))

	return &config.Config{
		Dataset:   config.DatasetConfig{Path: path},
		Embedding: config.EmbeddingConfig{Provider: "hashing", Cache: config.CacheConfig{Enabled: true}},
		Index:     config.IndexConfig{Backend: "memory"},
		Chat: config.ChatConfig{
			ConfidenceThreshold: 0.3,
			TopK:                3,
			DefaultLanguage:     "en",
			TopRecommendations:  5,
		},
		Session: config.SessionConfig{MaxMessages: 100},
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
