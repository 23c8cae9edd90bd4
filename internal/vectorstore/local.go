package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/retrieval-engine/internal/ranking"
	"github.com/bull/retrieval-engine/internal/storage"
)

// LocalStore searches vectors kept in the caller's chunk repository.
//
// The caller persists chunks, so Add, Remove and Clear only validate and log.
// Search is a full scan of every stored chunk; its cost grows linearly with
// the repository.
type LocalStore struct {
	chunks   storage.ChunkSource
	embedder Embedder
	logger   *slog.Logger
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a store over chunks.
func NewLocalStore(chunks storage.ChunkSource, embedder Embedder, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{chunks: chunks, embedder: embedder, logger: logger}
}

func (s *LocalStore) Name() string { return "local" }

// Add checks the chunks carry vectors of the embedder's dimension.
func (s *LocalStore) Add(_ context.Context, chunks []storage.Chunk) error {
	if err := checkVectors(chunks, s.embedder.Dimensions()); err != nil {
		return err
	}
	s.logger.Debug("Local store add is a no-op; caller persists chunks", "chunks", len(chunks))
	return nil
}

func (s *LocalStore) Search(ctx context.Context, query string, k int) ([]storage.RankedChunk, error) {
	candidates, err := s.chunks.AllChunks(ctx)
	if err != nil {
		return nil, storeError(s.Name(), "load chunks", err)
	}

	vector := s.embedder.Embed(ctx, query)
	ranked, err := ranking.Rank(vector, candidates, k)
	if err != nil {
		return nil, fmt.Errorf("rank %d chunks: %w", len(candidates), err)
	}

	s.logger.Debug("Local search", "candidates", len(candidates), "results", len(ranked))
	return ranked, nil
}

func (s *LocalStore) Remove(_ context.Context, documentID string) error {
	s.logger.Debug("Local store remove is a no-op; caller deletes chunks", "document_id", documentID)
	return nil
}

func (s *LocalStore) Clear(_ context.Context) error {
	return nil
}
