// ABOUTME: Application wiring shared by the HTTP server, MCP server and CLI
// ABOUTME: Opens the corpus store, builds provider backends and the core services from config
package app

import (
	"context"
	"fmt"

	"github.com/harper/bible-chat/internal/config"
	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/llm"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/storage"
	"github.com/harper/bible-chat/internal/storage/postgres"
	"github.com/harper/bible-chat/internal/storage/qdrantindex"
	"github.com/harper/bible-chat/internal/storage/sqlite"
)

// App holds the long-lived services. Everything in it is safe for concurrent use.
type App struct {
	Config    *config.Config
	Repo      storage.Repository
	Embedder  llm.EmbeddingBackend
	Model     llm.LanguageModelBackend
	Resolver  *core.Resolver
	Search    *core.SearchService
	Scripture *core.ScriptureService
	Chat      *core.ChatService
}

// New opens the configured store and providers and assembles the services
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := llm.NewEmbeddingBackend(ctx, cfg)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	model, err := llm.NewLanguageModelBackend(ctx, cfg)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	a, err := Assemble(ctx, cfg, repo, embedder, model)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	return a, nil
}

// Assemble builds the services over already-open dependencies
func Assemble(ctx context.Context, cfg *config.Config, repo storage.Repository, embedder llm.EmbeddingBackend, model llm.LanguageModelBackend) (*App, error) {
	catalog, err := core.LoadCatalog(ctx, repo)
	if err != nil {
		return nil, err
	}

	resolver := core.NewResolver(catalog, core.NewKeywordDetector(), cfg.DefaultTranslation)
	search := core.NewSearchService(repo, embedder, catalog, cfg.SimilarityThreshold)
	scripture := core.NewScriptureService(repo, catalog)
	chat := core.NewChatService(resolver, search, scripture, model, core.ChatConfig{
		MaxHistory:  cfg.MaxHistory,
		MaxVerses:   cfg.MaxContextVerses,
		MaxPassages: cfg.MaxContextPassages,
		Threshold:   cfg.SimilarityThreshold,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})

	logging.FromContext(ctx).Info("app_ready",
		"store", cfg.StoreBackend,
		"vector_index", cfg.QdrantAddr != "",
		"llm", model.Name()+"/"+model.Model(),
		"embedding", embedder.Name()+"/"+embedder.Model(),
		"translations", catalog.Len(),
		"default_translation", catalog.Default(),
	)

	return &App{
		Config:    cfg,
		Repo:      repo,
		Embedder:  embedder,
		Model:     model,
		Resolver:  resolver,
		Search:    search,
		Scripture: scripture,
		Chat:      chat,
	}, nil
}

// OpenRepository opens the relational corpus named by cfg.StoreBackend and,
// when QdrantAddr is set, serves similarity search from qdrant instead.
func OpenRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	corpus, err := openCorpus(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.QdrantAddr == "" {
		return corpus, nil
	}

	index, err := openIndex(ctx, cfg)
	if err != nil {
		_ = corpus.Close()
		return nil, err
	}
	return storage.NewHybrid(corpus, index), nil
}

// openCorpus opens the sqlite or postgres store without any vector index
func openCorpus(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.StoreBackend {
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("opening postgres corpus: %w", err)
		}
		return store, nil
	default:
		path := cfg.SQLitePath
		if path == "" {
			path = sqlite.DefaultDBPath()
		}
		store, err := sqlite.OpenStore(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite corpus: %w", err)
		}
		return store, nil
	}
}

func openIndex(ctx context.Context, cfg *config.Config) (*qdrantindex.Index, error) {
	index, err := qdrantindex.Connect(ctx, qdrantindex.Config{
		Addr:             cfg.QdrantAddr,
		CollectionPrefix: cfg.QdrantCollectionPrefix,
		Dimensions:       cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s: %w", cfg.QdrantAddr, err)
	}
	return index, nil
}

// Close releases the store
func (a *App) Close() error {
	return a.Repo.Close()
}
