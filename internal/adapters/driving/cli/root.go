// Package cli implements the docq command line interface. Commands
// talk to the core services through the driving ports; the wiring in
// this file selects the storage backend and provider from config.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	blobminio "github.com/veritas-labs/docq/internal/adapters/driven/blob/minio"
	cachememory "github.com/veritas-labs/docq/internal/adapters/driven/cache/memory"
	embeddashscope "github.com/veritas-labs/docq/internal/adapters/driven/embedding/dashscope"
	embedopenai "github.com/veritas-labs/docq/internal/adapters/driven/embedding/openai"
	llmopenai "github.com/veritas-labs/docq/internal/adapters/driven/llm/openai"
	"github.com/veritas-labs/docq/internal/adapters/driven/storage/postgres"
	"github.com/veritas-labs/docq/internal/adapters/driven/storage/sqlite"
	"github.com/veritas-labs/docq/internal/chunker"
	"github.com/veritas-labs/docq/internal/config"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
	"github.com/veritas-labs/docq/internal/core/ports/driving"
	"github.com/veritas-labs/docq/internal/core/services"
	"github.com/veritas-labs/docq/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// DashScope's OpenAI-compatible chat endpoint, used when the
// dashscope provider is selected.
const dashScopeCompatibleBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

var (
	cfgPath string
	verbose bool
)

// Services used by the commands. Tests inject fakes directly.
var (
	cfg              *config.Config
	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService
	deletionService  driving.DeletionService
	promptBuilder    *services.PromptBuilder
	llmService       driven.LLMService
	documentStore    driven.DocumentStore

	closers []io.Closer
	wired   bool
)

var rootCmd = &cobra.Command{
	Use:   "docq",
	Short: "Ask questions about your documents",
	Long: `docq ingests documents into chunked, embedded storage and answers
questions against them with cited passages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.docq/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// initServices wires adapters and services from config. Tests that
// preassign services skip the wiring.
func initServices() error {
	if wired {
		return nil
	}

	loaded, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg = loaded

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, embedder)

	docs, vectors, err := buildStorage(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}

	cacheStore := cachememory.NewCacheStore(0)
	closers = append(closers, cacheStore)
	cache := services.NewEmbeddingCache(cacheStore, embedder.ModelName(), embedder.Dimensions(),
		time.Duration(cfg.Cache.TTLHours)*time.Hour)

	vectorizer := services.NewQueryVectorizer(embedder, cache)

	ingestionService = services.NewIngestor(docs, vectors, embedder,
		services.WithSplitter(chunker.New(
			chunker.WithChunkSize(cfg.Chunking.ChunkSize),
			chunker.WithOverlap(cfg.Chunking.Overlap),
		)),
		services.WithBatchSize(cfg.Embedding.BatchSize),
		services.WithEmbedConcurrency(cfg.Embedding.Concurrency),
		services.WithProviderRateLimit(cfg.Embedding.RateLimit),
	)
	retrievalService = services.NewRetriever(vectorizer, vectors)
	promptBuilder = services.NewPromptBuilder(cfg.Retrieval.TokenBudget, cfg.Retrieval.ContextWindow)
	documentStore = docs

	blobs, err := buildBlobStore(cfg)
	if err != nil {
		return err
	}
	deletionService = services.NewDeleter(docs, vectors, blobs)

	llmService, err = buildLLM(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, llmService)

	wired = true
	return nil
}

func buildEmbedder(cfg *config.Config) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case config.ProviderDashScope:
		return embeddashscope.NewEmbeddingService(embeddashscope.Config{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
	default:
		return embedopenai.NewEmbeddingService(embedopenai.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}
}

func buildLLM(cfg *config.Config) (driven.LLMService, error) {
	llmCfg := llmopenai.LLMConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}
	if cfg.Provider == config.ProviderDashScope {
		if llmCfg.BaseURL == "" {
			llmCfg.BaseURL = dashScopeCompatibleBaseURL
		}
		if llmCfg.Model == "" {
			llmCfg.Model = "qwen-plus"
		}
	}
	return llmopenai.NewLLMService(llmCfg)
}

func buildStorage(cfg *config.Config, dimensions int) (driven.DocumentStore, driven.VectorStore, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		store, err := postgres.NewStore(cfg.Postgres.DSN, dimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres storage: %w", err)
		}
		closers = append(closers, store)
		return store.Documents(), store.Vectors(), nil
	default:
		store, err := sqlite.NewStore(cfg.SQLite.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite storage: %w", err)
		}
		closers = append(closers, store)
		return store.Documents(), store.Vectors(), nil
	}
}

// buildBlobStore returns nil when no object storage is configured;
// deletion then skips the storage cleanup step.
func buildBlobStore(cfg *config.Config) (driven.BlobStore, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, nil
	}
	store, err := blobminio.NewBlobStore(blobminio.Config{
		EndpointURL:     cfg.Minio.Endpoint,
		AccessKeyID:     cfg.Minio.AccessKey,
		SecretAccessKey: cfg.Minio.SecretKey,
		Bucket:          cfg.Minio.Bucket,
		Region:          cfg.Minio.Region,
		UseSSL:          cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio storage: %w", err)
	}
	closers = append(closers, store)
	return store, nil
}

func closeServices() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("closing service: %v", err)
		}
	}
	closers = nil
}

// owner returns the configured owner id, defaulting for tests that
// wire services without config.
func owner() string {
	if cfg != nil && cfg.Owner != "" {
		return cfg.Owner
	}
	return "local"
}
