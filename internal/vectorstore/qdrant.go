package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/retrieval-engine/internal/ranking"
	"github.com/bull/retrieval-engine/internal/storage"
)

// DefaultCollection is the Qdrant collection used when none is configured.
const DefaultCollection = "chunks"

// QdrantConfig configures QdrantStore.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
	Timeout    time.Duration
}

// QdrantStore keeps chunk vectors in a Qdrant collection over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
	timeout    time.Duration
	embedder   Embedder
	logger     *slog.Logger
}

var (
	_ Store         = (*QdrantStore)(nil)
	_ HealthChecker = (*QdrantStore)(nil)
	_ Counter       = (*QdrantStore)(nil)
)

// NewQdrantStore connects to Qdrant, waits for it to become healthy and
// makes sure the collection exists with the embedder's dimension.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, embedder Embedder, logger *slog.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimensions: embedder.Dimensions(),
		timeout:    cfg.Timeout,
		embedder:   embedder,
		logger:     logger,
	}

	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: qdrant %s:%d: %v", ErrStoreUnreachable, cfg.Host, cfg.Port, err)
	}
	if err := s.EnsureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return s, nil
}

func (s *QdrantStore) Name() string { return "qdrant:" + s.collection }

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error { return s.Health(ctx) }, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection (cosine distance) and its
// document_id payload index if missing. Safe to call repeatedly.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return storeError(s.Name(), "list collections", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return storeError(s.Name(), "create collection", err)
	}

	// Without this index Remove's filter delete scans the whole collection.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return storeError(s.Name(), "create document_id index", err)
	}

	s.logger.Info("Created collection", "collection", s.collection, "dimensions", s.dimensions)
	return nil
}

// Add upserts chunks in batches of 100. Upserts are not retried; a failed
// batch is reported as *storage.IngestError naming it and every later batch.
func (s *QdrantStore) Add(ctx context.Context, chunks []storage.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkVectors(chunks, s.dimensions); err != nil {
		return err
	}

	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, c := range chunks[i:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(c.ID),
				Vectors: qdrant.NewVectors(c.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"content":     c.Content,
					"document_id": c.DocumentID,
					"chunk_index": c.Index,
					"created_at":  c.CreatedAt.UTC().Format(time.RFC3339),
				}),
			})
		}

		if err := s.upsert(ctx, points); err != nil {
			return &storage.IngestError{
				DocumentID:    chunks[0].DocumentID,
				FailedIndices: failedFrom(chunks, i),
				Err:           storeError(s.Name(), fmt.Sprintf("upsert batch %d-%d", i, end), err),
			}
		}
	}

	return nil
}

func (s *QdrantStore) upsert(ctx context.Context, points []*qdrant.PointStruct) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	return err
}

func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]storage.RankedChunk, error) {
	if k <= 0 {
		return []storage.RankedChunk{}, nil
	}

	vector := s.embedder.Embed(ctx, query)
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s expects %d",
			ranking.ErrDimensionMismatch, len(vector), s.collection, s.dimensions)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, storeError(s.Name(), "query", err)
	}

	return rankedFromPoints(results), nil
}

// rankedFromPoints maps scored points back to chunks using their payload.
func rankedFromPoints(results []*qdrant.ScoredPoint) []storage.RankedChunk {
	ranked := make([]storage.RankedChunk, 0, len(results))
	for _, result := range results {
		payload := result.GetPayload()
		chunk := storage.Chunk{
			ID:         result.GetId().GetUuid(),
			DocumentID: payload["document_id"].GetStringValue(),
			Content:    payload["content"].GetStringValue(),
			Index:      int(payload["chunk_index"].GetIntegerValue()),
		}
		if t, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue()); err == nil {
			chunk.CreatedAt = t
		}
		ranked = append(ranked, storage.RankedChunk{Chunk: chunk, Score: float64(result.GetScore())})
	}
	orderRanked(ranked)
	return ranked
}

// Remove deletes every point whose payload document_id matches.
func (s *QdrantStore) Remove(ctx context.Context, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	if err != nil {
		return storeError(s.Name(), "remove "+documentID, err)
	}
	return nil
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.deleteCollection(ctx); err != nil {
		return storeError(s.Name(), "delete collection", err)
	}
	return s.EnsureCollection(ctx)
}

func (s *QdrantStore) deleteCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.DeleteCollection(ctx, s.collection)
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, storeError(s.Name(), "count", err)
	}
	return int(n), nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
