package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/retrieval-engine/internal/storage"
)

// Store kinds accepted by New.
const (
	KindLocal    = "local"
	KindPinecone = "pinecone"
	KindQdrant   = "qdrant"
)

// Config selects and configures a store variant.
type Config struct {
	Kind     string
	Pinecone PineconeConfig
	Qdrant   QdrantConfig
}

// New builds the store named by cfg.Kind. chunks is only used by the local store.
func New(ctx context.Context, cfg Config, embedder Embedder, chunks storage.ChunkSource, logger *slog.Logger) (Store, error) {
	switch cfg.Kind {
	case KindLocal, "":
		if chunks == nil {
			return nil, fmt.Errorf("%w: local store needs a chunk repository", storage.ErrStore)
		}
		return NewLocalStore(chunks, embedder, logger), nil
	case KindPinecone:
		s, err := NewPineconeStore(cfg.Pinecone, embedder, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindQdrant:
		s, err := NewQdrantStore(ctx, cfg.Qdrant, embedder, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store kind %q", storage.ErrStore, cfg.Kind)
	}
}
