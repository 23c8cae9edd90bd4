// Package vectorstore persists chunk vectors and answers nearest-neighbour
// queries. LocalStore scans the caller's repository; PineconeStore and
// QdrantStore delegate to a vector database.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bull/retrieval-engine/internal/ranking"
	"github.com/bull/retrieval-engine/internal/storage"
)

var (
	// ErrRemoveUnsupported is returned by stores that cannot delete vectors by
	// document. Callers that need deletion must track vector IDs themselves.
	ErrRemoveUnsupported = errors.New("remove by document is not supported by this store")

	// ErrStoreUnreachable is returned when a remote store fails its startup health check.
	ErrStoreUnreachable = errors.New("vector store unreachable")
)

// Store persists chunk vectors and searches them by query text.
type Store interface {
	Add(ctx context.Context, chunks []storage.Chunk) error
	Search(ctx context.Context, query string, k int) ([]storage.RankedChunk, error)
	Remove(ctx context.Context, documentID string) error
	Clear(ctx context.Context) error
	Name() string
}

// HealthChecker is implemented by stores with a remote dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Counter is implemented by stores that can report how many vectors they hold.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Embedder turns query text into a vector. *embedding.Manager satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	Dimensions() int
}

// batchSize is the most vectors sent in one upsert request.
const batchSize = 100

// storeError wraps err as a storage.ErrStore, keeping err inspectable.
func storeError(store, op string, err error) error {
	return fmt.Errorf("%w: %s: %s: %w", storage.ErrStore, store, op, err)
}

// failedFrom returns the chunk indices of chunks[from:].
func failedFrom(chunks []storage.Chunk, from int) []int {
	indices := make([]int, 0, len(chunks)-from)
	for _, c := range chunks[from:] {
		indices = append(indices, c.Index)
	}
	return indices
}

// checkVectors rejects chunks that have no vector or the wrong dimension.
func checkVectors(chunks []storage.Chunk, dims int) error {
	for _, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("%w: chunk %d of %s has no vector", storage.ErrStore, c.Index, c.DocumentID)
		}
		if dims > 0 && len(c.Vector) != dims {
			return fmt.Errorf("%w: chunk %d of %s has %d dimensions, expected %d",
				ranking.ErrDimensionMismatch, c.Index, c.DocumentID, len(c.Vector), dims)
		}
	}
	return nil
}

// orderRanked sorts remote results by score descending, breaking ties by
// chunk Index so equal scores come back in a stable order.
func orderRanked(ranked []storage.RankedChunk) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Chunk.Index < ranked[j].Chunk.Index
	})
}
