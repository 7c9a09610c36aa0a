// Package config loads the docq configuration from a TOML file,
// applies environment overrides for secrets, and validates the
// result before any service is wired.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/veritas-labs/docq/internal/core/services"
)

// Backend and provider identifiers accepted in the config file.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	ProviderOpenAI    = "openai"
	ProviderDashScope = "dashscope"
)

// Environment variables that override file values. Secrets never live
// in the config file.
const (
	EnvOpenAIAPIKey    = "DOCQ_OPENAI_API_KEY"
	EnvDashScopeAPIKey = "DOCQ_DASHSCOPE_API_KEY"
	EnvPostgresDSN     = "DOCQ_POSTGRES_DSN"
	EnvMinioAccessKey  = "DOCQ_MINIO_ACCESS_KEY"
	EnvMinioSecretKey  = "DOCQ_MINIO_SECRET_KEY"
)

// Config is the full application configuration.
type Config struct {
	// Storage selects the storage backend.
	Storage string `toml:"storage" validate:"oneof=sqlite postgres"`

	// Provider selects the embedding/LLM provider.
	Provider string `toml:"provider" validate:"oneof=openai dashscope"`

	// Owner identifies the local user for ownership scoping.
	Owner string `toml:"owner" validate:"required"`

	SQLite    SQLiteConfig    `toml:"sqlite"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Cache     CacheConfig     `toml:"cache"`
	Minio     MinioConfig     `toml:"minio"`
}

// SQLiteConfig configures the local storage backend.
type SQLiteConfig struct {
	// DataDir holds the database file. Empty means ~/.docq/data.
	DataDir string `toml:"data_dir"`
}

// PostgresConfig configures the Postgres/pgvector backend.
type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

// EmbeddingConfig configures embedding generation.
type EmbeddingConfig struct {
	// APIKey is normally supplied via environment.
	APIKey string `toml:"api_key"`

	// Model overrides the provider's default embedding model.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// Dimensions overrides the model's default vector width.
	Dimensions int `toml:"dimensions" validate:"gte=0"`

	// BatchSize is the number of chunks embedded per request.
	BatchSize int `toml:"batch_size" validate:"gte=0"`

	// Concurrency bounds in-flight embedding requests.
	Concurrency int `toml:"concurrency" validate:"gte=0"`

	// RateLimit caps provider requests per second. 0 disables pacing.
	RateLimit float64 `toml:"rate_limit" validate:"gte=0"`
}

// LLMConfig configures answer generation.
type LLMConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	MaxTokens   int     `toml:"max_tokens" validate:"gte=0"`
	Temperature float64 `toml:"temperature" validate:"gte=0,lte=2"`
}

// RetrievalConfig configures search and prompt budgeting.
type RetrievalConfig struct {
	TopK          int     `toml:"top_k" validate:"gte=0"`
	MinScore      float64 `toml:"min_score" validate:"gte=0,lte=1"`
	TokenBudget   int     `toml:"token_budget" validate:"gte=0"`
	ContextWindow int     `toml:"context_window" validate:"gte=0"`
}

// ChunkingConfig configures document splitting.
type ChunkingConfig struct {
	ChunkSize int `toml:"chunk_size" validate:"gte=0"`
	Overlap   int `toml:"overlap" validate:"gte=0"`
}

// CacheConfig configures the query embedding cache.
type CacheConfig struct {
	// TTLHours is the cache entry lifetime. 0 means the default.
	TTLHours int `toml:"ttl_hours" validate:"gte=0"`
}

// MinioConfig configures object storage cleanup. Optional: with an
// empty endpoint, deletion skips the storage step.
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Default returns a config with working local defaults.
func Default() *Config {
	return &Config{
		Storage:  StorageSQLite,
		Provider: ProviderOpenAI,
		Owner:    "local",
		Embedding: EmbeddingConfig{
			BatchSize:   services.DefaultEmbedBatchSize,
			Concurrency: services.DefaultEmbedConcurrency,
		},
		LLM: LLMConfig{
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Retrieval: RetrievalConfig{
			TopK:          services.DefaultTopK,
			MinScore:      services.DefaultMinScore,
			TokenBudget:   services.DefaultTokenBudget,
			ContextWindow: services.DefaultContextWindow,
		},
		Chunking: ChunkingConfig{
			ChunkSize: 1000,
			Overlap:   200,
		},
		Cache: CacheConfig{
			TTLHours: 24,
		},
	}
}

// DefaultPath returns ~/.docq/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".docq", "config.toml"), nil
}

// Load reads the config file at path, layering file values over
// defaults and environment overrides over both. A missing file is not
// an error: defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to defaults.
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	switch c.Provider {
	case ProviderDashScope:
		if v := os.Getenv(EnvDashScopeAPIKey); v != "" {
			c.Embedding.APIKey = v
			c.LLM.APIKey = v
		}
	default:
		if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
			c.Embedding.APIKey = v
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv(EnvMinioAccessKey); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv(EnvMinioSecretKey); v != "" {
		c.Minio.SecretKey = v
	}
}

// Validate checks structural constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage == StoragePostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("invalid config: postgres storage requires a DSN (set %s)", EnvPostgresDSN)
	}
	if c.Chunking.Overlap >= c.Chunking.ChunkSize && c.Chunking.ChunkSize > 0 {
		return fmt.Errorf("invalid config: chunking overlap %d must be smaller than chunk size %d",
			c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	return nil
}
