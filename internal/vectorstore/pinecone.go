package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/retrieval-engine/internal/ranking"
	"github.com/bull/retrieval-engine/internal/restclient"
	"github.com/bull/retrieval-engine/internal/storage"
)

const (
	DefaultNamespace = "default"
	DefaultTimeout   = 30 * time.Second
)

// PineconeConfig configures PineconeStore.
type PineconeConfig struct {
	APIKey string

	// Host is the index's data-plane host, e.g. my-index-abc123.svc.us-east-1.pinecone.io.
	Host      string
	IndexName string
	Namespace string
	Timeout   time.Duration
}

// PineconeStore keeps chunk vectors in a Pinecone index namespace.
// Vectors cannot be removed per document; Remove returns ErrRemoveUnsupported.
type PineconeStore struct {
	client    *restclient.RestClient
	indexName string
	namespace string
	timeout   time.Duration
	embedder  Embedder
	logger    *slog.Logger
}

var (
	_ Store         = (*PineconeStore)(nil)
	_ HealthChecker = (*PineconeStore)(nil)
	_ Counter       = (*PineconeStore)(nil)
)

type pineconeMetadata struct {
	Content    string `json:"content"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	CreatedAt  string `json:"created_at"`
}

type pineconeVector struct {
	ID       string           `json:"id"`
	Values   []float32        `json:"values"`
	Metadata pineconeMetadata `json:"metadata"`
}

type upsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace"`
}

type queryMatch struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Values   []float32         `json:"values"`
	Metadata *pineconeMetadata `json:"metadata"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
}

type deleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace"`
}

type statsResponse struct {
	Dimension  int `json:"dimension"`
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// NewPineconeStore creates a store for the index at cfg.Host.
func NewPineconeStore(cfg PineconeConfig, embedder Embedder, logger *slog.Logger) (*PineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: pinecone: API key not set", storage.ErrStore)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: pinecone: index host not set", storage.ErrStore)
	}
	if logger == nil {
		logger = slog.Default()
	}

	host := cfg.Host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &PineconeStore{
		client:    restclient.NewRestClient(host, map[string]string{"Api-Key": cfg.APIKey}, 0),
		indexName: cfg.IndexName,
		namespace: namespace,
		timeout:   timeout,
		embedder:  embedder,
		logger:    logger,
	}, nil
}

func (s *PineconeStore) Name() string {
	if s.indexName == "" {
		return "pinecone/" + s.namespace
	}
	return "pinecone:" + s.indexName + "/" + s.namespace
}

// Add upserts chunks in batches of 100. When a batch fails the returned
// *storage.IngestError lists the indices of that batch and every later one;
// earlier batches stay committed.
func (s *PineconeStore) Add(ctx context.Context, chunks []storage.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkVectors(chunks, s.embedder.Dimensions()); err != nil {
		return err
	}

	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		vectors := make([]pineconeVector, 0, end-i)
		for _, c := range chunks[i:end] {
			vectors = append(vectors, pineconeVector{
				ID:     c.ID,
				Values: c.Vector,
				Metadata: pineconeMetadata{
					Content:    c.Content,
					DocumentID: c.DocumentID,
					ChunkIndex: c.Index,
					CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
				},
			})
		}

		if err := s.post(ctx, "/vectors/upsert", upsertRequest{Vectors: vectors, Namespace: s.namespace}, nil); err != nil {
			return &storage.IngestError{
				DocumentID:    chunks[0].DocumentID,
				FailedIndices: failedFrom(chunks, i),
				Err:           storeError(s.Name(), fmt.Sprintf("upsert batch %d-%d", i, end), err),
			}
		}
		s.logger.Debug("Upserted batch", "store", s.Name(), "from", i, "to", end)
	}

	return nil
}

func (s *PineconeStore) Search(ctx context.Context, query string, k int) ([]storage.RankedChunk, error) {
	if k <= 0 {
		return []storage.RankedChunk{}, nil
	}

	vector := s.embedder.Embed(ctx, query)
	req := queryRequest{
		Vector:          vector,
		TopK:            k,
		IncludeMetadata: true,
		Namespace:       s.namespace,
	}

	var resp queryResponse
	if err := s.post(ctx, "/query", req, &resp); err != nil {
		return nil, storeError(s.Name(), "query", err)
	}

	ranked := make([]storage.RankedChunk, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		chunk := storage.Chunk{ID: m.ID, Vector: m.Values}
		if m.Metadata != nil {
			chunk.Content = m.Metadata.Content
			chunk.DocumentID = m.Metadata.DocumentID
			chunk.Index = m.Metadata.ChunkIndex
			if t, err := time.Parse(time.RFC3339, m.Metadata.CreatedAt); err == nil {
				chunk.CreatedAt = t
			}
		}
		ranked = append(ranked, storage.RankedChunk{Chunk: chunk, Score: m.Score})
	}

	orderRanked(ranked)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// Remove is not supported: Pinecone deletion here has no metadata filter.
func (s *PineconeStore) Remove(_ context.Context, documentID string) error {
	return fmt.Errorf("%w: %s: document %s", ErrRemoveUnsupported, s.Name(), documentID)
}

// Clear deletes every vector in the namespace.
func (s *PineconeStore) Clear(ctx context.Context) error {
	if err := s.post(ctx, "/vectors/delete", deleteRequest{DeleteAll: true, Namespace: s.namespace}, nil); err != nil {
		return storeError(s.Name(), "clear", err)
	}
	return nil
}

// Health checks the index is reachable and its dimension matches the embedder.
func (s *PineconeStore) Health(ctx context.Context) error {
	stats, err := s.stats(ctx)
	if err != nil {
		return err
	}
	if dims := s.embedder.Dimensions(); stats.Dimension != 0 && stats.Dimension != dims {
		return fmt.Errorf("%w: index %s has dimension %d, embeddings have %d",
			ranking.ErrDimensionMismatch, s.Name(), stats.Dimension, dims)
	}
	return nil
}

// Count returns the number of vectors in the namespace.
func (s *PineconeStore) Count(ctx context.Context) (int, error) {
	stats, err := s.stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Namespaces[s.namespace].VectorCount, nil
}

func (s *PineconeStore) stats(ctx context.Context) (*statsResponse, error) {
	var resp statsResponse
	if err := s.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, storeError(s.Name(), "describe index stats", err)
	}
	return &resp, nil
}

// post issues one request bounded by the store timeout.
func (s *PineconeStore) post(ctx context.Context, endpoint string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.client.PostJSON(ctx, endpoint, in, out)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out after %s: %w", s.timeout, err)
	}
	return err
}
