package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Chat      ChatConfig      `yaml:"chat"`
	Session   SessionConfig   `yaml:"session"`
	Valkey    ValkeyConfig    `yaml:"valkey"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	Retry        RetryConfig     `yaml:"retry"`
	CORS         CORSConfig      `yaml:"cors"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// DatasetConfig locates the Q&A dataset.
type DatasetConfig struct {
	// Path is a file path or s3://bucket/key.
	Path        string            `yaml:"path"`
	Lenient     bool              `yaml:"lenient"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
}

// ObjectStoreConfig holds S3-compatible credentials for s3:// dataset paths.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of hashing, ollama or openai.
	Provider   string      `yaml:"provider"`
	Model      string      `yaml:"model"`
	BaseURL    string      `yaml:"baseUrl"`
	APIKey     string      `yaml:"apiKey"`
	Dimensions int         `yaml:"dimensions"`
	BatchSize  int         `yaml:"batchSize"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig toggles the embedding cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// IndexConfig selects the similarity index backend.
type IndexConfig struct {
	// Backend is one of memory, sqlitevec or pgvector.
	Backend  string         `yaml:"backend"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig locates the sqlite-vec database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN       string `yaml:"dsn"`
	MaxConns  int32  `yaml:"maxConns"`
	MinConns  int32  `yaml:"minConns"`
	IndexName string `yaml:"indexName"`
}

// ChatConfig controls answer selection.
type ChatConfig struct {
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	TopK                int     `yaml:"topK"`
	DefaultLanguage     string  `yaml:"defaultLanguage"`
	TopRecommendations  int     `yaml:"topRecommendations"`
}

// SessionConfig bounds conversation transcripts.
type SessionConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	MaxMessages int           `yaml:"maxMessages"`
}

// ValkeyConfig contains connection information for session and cache storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// Load reads configuration from CONFIG_PATH or configs/config.yaml, then
// applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_PATH"))
}

// LoadFrom reads configuration from path. An empty path falls back to
// configs/config.yaml when present.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("DATASET_LENIENT"); v != "" {
		cfg.Dataset.Lenient = parseBool(v)
	}
	if v := os.Getenv("DATASET_S3_ENDPOINT"); v != "" {
		cfg.Dataset.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("DATASET_S3_ACCESS_KEY"); v != "" {
		cfg.Dataset.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("DATASET_S3_SECRET_KEY"); v != "" {
		cfg.Dataset.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("DATASET_S3_REGION"); v != "" {
		cfg.Dataset.ObjectStore.Region = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = parsed
		}
	}
	if v := os.Getenv("EMBEDDING_BATCH_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.BatchSize = parsed
		}
	}
	if v := os.Getenv("EMBEDDING_CACHE_ENABLED"); v != "" {
		cfg.Embedding.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("EMBEDDING_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Embedding.Cache.TTL = parsed
		}
	}
	if v := os.Getenv("INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("INDEX_SQLITE_PATH"); v != "" {
		cfg.Index.SQLite.Path = v
	}
	if v := os.Getenv("INDEX_POSTGRES_DSN"); v != "" {
		cfg.Index.Postgres.DSN = v
	}
	if v := os.Getenv("INDEX_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Index.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("INDEX_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Index.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("CHAT_CONFIDENCE_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chat.ConfidenceThreshold = parsed
		}
	}
	if v := os.Getenv("CHAT_TOP_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.TopK = parsed
		}
	}
	if v := os.Getenv("CHAT_DEFAULT_LANGUAGE"); v != "" {
		cfg.Chat.DefaultLanguage = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = parsed
		}
	}
	if v := os.Getenv("SESSION_MAX_MESSAGES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxMessages = parsed
		}
	}
	if v := os.Getenv("VALKEY_ENABLED"); v != "" {
		cfg.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Valkey.Addr = v
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/chat",
				},
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:5173"},
			},
		},
		Dataset: DatasetConfig{
			Path: "data/farming_qa.json",
		},
		Embedding: EmbeddingConfig{
			Provider:  "hashing",
			BatchSize: 32,
			Cache: CacheConfig{
				Enabled: false,
				TTL:     24 * time.Hour,
			},
		},
		Index: IndexConfig{
			Backend: "memory",
			SQLite: SQLiteConfig{
				Path: "data/index.db",
			},
			Postgres: PostgresConfig{
				MaxConns:  4,
				MinConns:  0,
				IndexName: "default",
			},
		},
		Chat: ChatConfig{
			ConfidenceThreshold: 0.3,
			TopK:                3,
			DefaultLanguage:     "en",
			TopRecommendations:  5,
		},
		Session: SessionConfig{
			TTL:         2 * time.Hour,
			MaxMessages: 100,
		},
		Valkey: ValkeyConfig{
			Enabled: false,
			Prefix:  "offlineqa",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.Dataset.Path) == "" {
		return errors.New("dataset.path cannot be empty")
	}
	if strings.HasPrefix(c.Dataset.Path, "s3://") && strings.TrimSpace(c.Dataset.ObjectStore.Endpoint) == "" {
		return errors.New("dataset.objectStore.endpoint is required for s3:// dataset paths")
	}
	switch c.Embedding.Provider {
	case "hashing":
	case "ollama":
	case "openai":
		if strings.TrimSpace(c.Embedding.APIKey) == "" {
			return errors.New("embedding.apiKey is required for the openai provider")
		}
		if strings.TrimSpace(c.Embedding.Model) == "" {
			return errors.New("embedding.model is required for the openai provider")
		}
	default:
		return fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return errors.New("embedding.dimensions cannot be negative")
	}
	if c.Embedding.BatchSize < 0 {
		return errors.New("embedding.batchSize cannot be negative")
	}
	if c.Embedding.Cache.TTL < 0 {
		return errors.New("embedding.cache.ttl cannot be negative")
	}
	switch c.Index.Backend {
	case "memory":
	case "sqlitevec":
		if strings.TrimSpace(c.Index.SQLite.Path) == "" {
			return errors.New("index.sqlite.path cannot be empty for the sqlitevec backend")
		}
	case "pgvector":
		if strings.TrimSpace(c.Index.Postgres.DSN) == "" {
			return errors.New("index.postgres.dsn cannot be empty for the pgvector backend")
		}
	default:
		return fmt.Errorf("index.backend %q is not supported", c.Index.Backend)
	}
	if c.Chat.ConfidenceThreshold <= 0 || c.Chat.ConfidenceThreshold > 1 {
		return errors.New("chat.confidenceThreshold must be in (0, 1]")
	}
	if c.Chat.TopK <= 0 {
		return errors.New("chat.topK must be positive")
	}
	if c.Chat.TopRecommendations < 0 {
		return errors.New("chat.topRecommendations cannot be negative")
	}
	if c.Session.TTL < 0 {
		return errors.New("session.ttl cannot be negative")
	}
	if c.Session.MaxMessages <= 0 {
		return errors.New("session.maxMessages must be positive")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	return nil
}
