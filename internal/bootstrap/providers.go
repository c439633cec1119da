package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/offlineqa/internal/domain/conversation"
	"github.com/yanqian/offlineqa/internal/domain/qa"
	"github.com/yanqian/offlineqa/internal/infra/config"
	"github.com/yanqian/offlineqa/internal/infra/dataset"
	"github.com/yanqian/offlineqa/internal/infra/embedcache"
	"github.com/yanqian/offlineqa/internal/infra/embedder"
	"github.com/yanqian/offlineqa/internal/infra/llm/chatgpt"
	"github.com/yanqian/offlineqa/internal/infra/sessionstore"
	"github.com/yanqian/offlineqa/internal/infra/vectorindex"
)

// ProvideValkeyClient connects to Valkey when enabled. A nil client means the
// in-memory stores are used.
func ProvideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func()) {
	noop := func() {}
	if !cfg.Valkey.Enabled {
		return nil, noop
	}
	opt, err := buildValkeyOptions(cfg.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory stores", "error", err)
		return nil, noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory stores", "error", err)
		return nil, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory stores", "error", err)
		client.Close()
		return nil, noop
	}
	logger.Info("valkey enabled", "addr", cfg.Valkey.Addr)
	return client, client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// ProvideDatasetLoader builds the loader, attaching object storage when the
// dataset lives in a bucket.
func ProvideDatasetLoader(cfg *config.Config, logger *slog.Logger) (qa.DatasetLoader, error) {
	var objects dataset.ObjectReader
	if strings.HasPrefix(cfg.Dataset.Path, "s3://") {
		store, err := dataset.NewObjectStore(
			cfg.Dataset.ObjectStore.Endpoint,
			cfg.Dataset.ObjectStore.AccessKey,
			cfg.Dataset.ObjectStore.SecretKey,
			cfg.Dataset.ObjectStore.Region,
			logger,
		)
		if err != nil {
			return nil, err
		}
		objects = store
	}
	return dataset.NewLoader(objects, cfg.Dataset.Lenient, logger), nil
}

// EmbeddingModelID names the model that produced the vectors. It feeds the
// index version, so changing provider or model forces a rebuild.
func EmbeddingModelID(cfg *config.Config) string {
	switch cfg.Embedding.Provider {
	case "hashing":
		dims := cfg.Embedding.Dimensions
		if dims <= 0 {
			dims = embedder.DefaultHashingDimensions
		}
		return fmt.Sprintf("%s/%d", embedder.HashingModel, dims)
	case "ollama":
		model := cfg.Embedding.Model
		if model == "" {
			model = embedder.DefaultOllamaModel
		}
		return "ollama/" + model
	default:
		return cfg.Embedding.Provider + "/" + cfg.Embedding.Model
	}
}

// ProvideEmbedder selects the embedding provider and wraps it with the cache
// when enabled.
func ProvideEmbedder(cfg *config.Config, client valkey.Client, logger *slog.Logger) (qa.Embedder, error) {
	var base qa.Embedder
	switch cfg.Embedding.Provider {
	case "hashing":
		base = embedder.NewHashingEmbedder(cfg.Embedding.Dimensions)
	case "ollama":
		base = embedder.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.BatchSize, logger)
	case "openai":
		apiClient, err := chatgpt.NewClient(cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
		if err != nil {
			return nil, err
		}
		base = embedder.NewOpenAIEmbedder(apiClient, cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize, logger)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Embedding.Provider)
	}
	if !cfg.Embedding.Cache.Enabled {
		return base, nil
	}
	var cache embedder.Cache = embedcache.NewMemoryCache()
	if client != nil {
		cache = embedcache.NewValkeyCache(client, cfg.Valkey.Prefix)
	}
	logger.Info("embedding cache enabled", "valkey", client != nil)
	return embedder.NewCachedEmbedder(base, cache, EmbeddingModelID(cfg), cfg.Embedding.Cache.TTL, logger), nil
}

// ProvideIndex opens the configured similarity index backend.
func ProvideIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (qa.Index, func(), error) {
	switch cfg.Index.Backend {
	case vectorindex.BackendMemory:
		return vectorindex.NewFlatIndex(), func() {}, nil
	case vectorindex.BackendSQLiteVec:
		idx, err := vectorindex.NewSQLiteVecIndex(cfg.Index.SQLite.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() {
			if err := idx.Close(); err != nil {
				logger.Warn("closing sqlite-vec index failed", "error", err)
			}
		}, nil
	case vectorindex.BackendPgvector:
		pool, err := newPostgresPool(ctx, cfg.Index.Postgres)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("pgvector index enabled", "index", cfg.Index.Postgres.IndexName)
		return vectorindex.NewPgvectorIndex(pool, cfg.Index.Postgres.IndexName, logger), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
	}
}

func newPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// ProvideQAConfig maps the chatbot settings.
func ProvideQAConfig(cfg *config.Config) qa.Config {
	return qa.Config{
		DatasetPath:         cfg.Dataset.Path,
		EmbeddingModel:      EmbeddingModelID(cfg),
		IndexBackend:        cfg.Index.Backend,
		ConfidenceThreshold: cfg.Chat.ConfidenceThreshold,
	}
}

// ProvideChatbot builds the chatbot once per process.
func ProvideChatbot(ctx context.Context, cfg qa.Config, loader qa.DatasetLoader, emb qa.Embedder, index qa.Index, logger *slog.Logger) (qa.Chatbot, error) {
	return qa.NewChatbot(ctx, cfg, loader, emb, index, logger)
}

// ProvideConversationConfig maps the conversation settings.
func ProvideConversationConfig(cfg *config.Config) conversation.Config {
	return conversation.Config{
		ConfidenceThreshold: cfg.Chat.ConfidenceThreshold,
		DefaultLanguage:     cfg.Chat.DefaultLanguage,
		SessionTTL:          cfg.Session.TTL,
		MaxMessages:         cfg.Session.MaxMessages,
		TopRecommendations:  cfg.Chat.TopRecommendations,
	}
}

// ProvideSessionStore picks Valkey when connected, memory otherwise.
func ProvideSessionStore(cfg *config.Config, client valkey.Client) conversation.Store {
	if client != nil {
		return sessionstore.NewValkeyStore(client, cfg.Valkey.Prefix)
	}
	return sessionstore.NewMemoryStore()
}

// ProvideConversationService wires the chat flow around the chatbot.
func ProvideConversationService(cfg conversation.Config, bot qa.Chatbot, store conversation.Store, logger *slog.Logger) conversation.Service {
	return conversation.NewService(cfg, bot, store, logger)
}
