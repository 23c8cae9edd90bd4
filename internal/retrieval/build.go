package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/retrieval-engine/internal/chunker"
	"github.com/bull/retrieval-engine/internal/config"
	"github.com/bull/retrieval-engine/internal/embedding"
	"github.com/bull/retrieval-engine/internal/storage"
	"github.com/bull/retrieval-engine/internal/vectorstore"
)

// Build wires an Engine from configuration. repo backs the local store and
// resolves document titles for Context.
//
// A local model that fails to initialize is not fatal: the manager falls
// back to hash embeddings until the server becomes available.
func Build(ctx context.Context, cfg *config.Config, repo storage.Repository, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := embedding.NewProvider(embedding.ProviderConfig{
		Kind:              cfg.Embedding.Provider,
		APIKey:            cfg.Embedding.APIKey,
		Model:             cfg.Embedding.Model,
		BaseURL:           cfg.Embedding.BaseURL,
		Dimensions:        cfg.Embedding.Dimensions,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	if initializer, ok := provider.(embedding.Initializer); ok {
		if err := initializer.Init(ctx); err != nil {
			logger.Warn("Embedding provider failed to initialize, hash fallback will be used", "provider", provider.Name(), "error", err)
		}
	}

	manager, err := embedding.NewManager(provider,
		embedding.WithCacheSize(cfg.Embedding.CacheSize),
		embedding.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	c, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.ChunkSize),
		chunker.WithOverlap(cfg.Chunking.Overlap),
		chunker.WithMinLength(cfg.Chunking.MinLength),
	)
	if err != nil {
		return nil, err
	}

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Kind: cfg.Store.Kind,
		Pinecone: vectorstore.PineconeConfig{
			APIKey:    cfg.Store.Pinecone.APIKey,
			Host:      cfg.Store.Pinecone.Host,
			IndexName: cfg.Store.Pinecone.IndexName,
			Namespace: cfg.Store.Pinecone.Namespace,
			Timeout:   cfg.Store.Timeout,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:       cfg.Store.Qdrant.Host,
			Port:       cfg.Store.Qdrant.Port,
			Collection: cfg.Store.Qdrant.Collection,
			APIKey:     cfg.Store.Qdrant.APIKey,
			UseTLS:     cfg.Store.Qdrant.UseTLS,
			Timeout:    cfg.Store.Timeout,
		},
	}, manager, repo, logger)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}

	logger.Info("Retrieval engine ready",
		"provider", manager.ProviderName(),
		"dimensions", manager.Dimensions(),
		"store", store.Name(),
	)

	return New(c, manager, store,
		WithLogger(logger),
		WithConcurrency(cfg.Retrieval.Concurrency),
		WithDocuments(repo),
	)
}
