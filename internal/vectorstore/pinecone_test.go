package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/retrieval-engine/internal/ranking"
	"github.com/bull/retrieval-engine/internal/storage"
)

// fakePinecone records requests per endpoint and lets tests fail selected upsert calls.
type fakePinecone struct {
	mu          sync.Mutex
	upserts     []upsertRequest
	deletes     []deleteRequest
	queries     []queryRequest
	failUpsert  int // 1-based upsert call to fail, 0 for none
	dimension   int
	vectorCount int
	matches     []queryMatch
}

func (f *fakePinecone) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pc-key", r.Header.Get("Api-Key"))

		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Path {
		case "/vectors/upsert":
			var req upsertRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.upserts = append(f.upserts, req)
			if len(f.upserts) == f.failUpsert {
				http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(map[string]int{"upsertedCount": len(req.Vectors)})
		case "/query":
			var req queryRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.queries = append(f.queries, req)
			json.NewEncoder(w).Encode(queryResponse{Matches: f.matches})
		case "/vectors/delete":
			var req deleteRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.deletes = append(f.deletes, req)
			w.Write([]byte("{}"))
		case "/describe_index_stats":
			fmt.Fprintf(w, `{"dimension": %d, "namespaces": {"docs": {"vectorCount": %d}}}`, f.dimension, f.vectorCount)
		default:
			http.NotFound(w, r)
		}
	})
}

func newPineconeTestStore(t *testing.T, url string, dims int) *PineconeStore {
	t.Helper()
	s, err := NewPineconeStore(PineconeConfig{
		APIKey:    "pc-key",
		Host:      url,
		IndexName: "docs-index",
		Namespace: "docs",
		Timeout:   2 * time.Second,
	}, &fixedEmbedder{dims: dims}, nil)
	require.NoError(t, err)
	return s
}

func vectorChunks(docID string, n, dims int) []storage.Chunk {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	chunks := make([]storage.Chunk, n)
	for i := range chunks {
		v := make([]float32, dims)
		v[i%dims] = 1
		chunks[i] = storage.Chunk{
			ID:         fmt.Sprintf("%s-%d", docID, i),
			DocumentID: docID,
			Content:    fmt.Sprintf("chunk %d", i),
			Index:      i,
			Vector:     v,
			CreatedAt:  created,
		}
	}
	return chunks
}

func TestPineconeStore_AddBatches(t *testing.T) {
	fake := &fakePinecone{}
	ts := httptest.NewServer(fake.handler(t))
	defer ts.Close()

	store := newPineconeTestStore(t, ts.URL, 4)
	require.NoError(t, store.Add(context.Background(), vectorChunks("doc-1", 250, 4)))

	require.Len(t, fake.upserts, 3)
	assert.Len(t, fake.upserts[0].Vectors, 100)
	assert.Len(t, fake.upserts[1].Vectors, 100)
	assert.Len(t, fake.upserts[2].Vectors, 50)

	first := fake.upserts[0].Vectors[0]
	assert.Equal(t, "docs", fake.upserts[0].Namespace)
	assert.Equal(t, "doc-1-0", first.ID)
	assert.Equal(t, "doc-1", first.Metadata.DocumentID)
	assert.Equal(t, "chunk 0", first.Metadata.Content)
	assert.Equal(t, 0, first.Metadata.ChunkIndex)
	assert.Equal(t, "2026-03-01T12:00:00Z", first.Metadata.CreatedAt)
}

func TestPineconeStore_AddPartialFailure(t *testing.T) {
	fake := &fakePinecone{failUpsert: 2}
	ts := httptest.NewServer(fake.handler(t))
	defer ts.Close()

	store := newPineconeTestStore(t, ts.URL, 4)
	err := store.Add(context.Background(), vectorChunks("doc-1", 250, 4))

	var ingestErr *storage.IngestError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, "doc-1", ingestErr.DocumentID)
	require.Len(t, ingestErr.FailedIndices, 150)
	assert.Equal(t, 100, ingestErr.FailedIndices[0])
	assert.Equal(t, 249, ingestErr.FailedIndices[149])
	assert.ErrorIs(t, err, storage.ErrStore)
	assert.Len(t, fake.upserts, 2, "later batches must not be sent after a failure")
}

func TestPineconeStore_AddRejectsWrongDimensions(t *testing.T) {
	fake := &fakePinecone{}
	ts := httptest.NewServer(fake.handler(t))
	defer ts.Close()

	store := newPineconeTestStore(t, ts.URL, 8)
	err := store.Add(context.Background(), vectorChunks("doc-1", 3, 4))
	assert.ErrorIs(t, err, ranking.ErrDimensionMismatch)
	assert.Empty(t, fake.upserts)
}

func TestPineconeStore_Search(t *testing.T) {
	fake := &fakePinecone{matches: []queryMatch{
		{ID: "b", Score: 0.4, Metadata: &pineconeMetadata{Content: "cars drive", DocumentID: "cars", ChunkIndex: 3}},
		{ID: "a", Score: 0.9, Metadata: &pineconeMetadata{Content: "birds fly", DocumentID: "birds", ChunkIndex: 0, CreatedAt: "2026-03-01T12:00:00Z"}},
	}}
	ts := httptest.NewServer(fake.handler(t))
	defer ts.Close()

	store := newPineconeTestStore(t, ts.URL, 4)
	ranked, err := store.Search(context.Background(), "flight", 2)
	require.NoError(t, err)

	require.Len(t, fake.queries, 1)
	assert.Equal(t, 2, fake.queries[0].TopK)
	assert.True(t, fake.queries[0].IncludeMetadata)
	assert.Equal(t, "docs", fake.queries[0].Namespace)
	assert.Len(t, fake.queries[0].Vector, 4)

	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Chunk.ID)
	assert.Equal(t, "birds", ranked[0].Chunk.DocumentID)
	assert.Equal(t, "birds fly", ranked[0].Chunk.Content)
	assert.InDelta(t, 0.9, ranked[0].Score, 1e-9)
	assert.Equal(t, 2026, ranked[0].Chunk.CreatedAt.Year())
	assert.Equal(t, 3, ranked[1].Chunk.Index)
}

func TestPineconeStore_SearchError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()

	store, err := NewPineconeStore(PineconeConfig{APIKey: "bad", Host: ts.URL}, &fixedEmbedder{dims: 4}, nil)
	require.NoError(t, err)

	_, err = store.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, storage.ErrStore)
}

func TestPineconeStore_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	store, err := NewPineconeStore(PineconeConfig{APIKey: "k", Host: ts.URL, Timeout: 50 * time.Millisecond}, &fixedEmbedder{dims: 4}, nil)
	require.NoError(t, err)

	_, err = store.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, storage.ErrStore)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPineconeStore_RemoveUnsupported(t *testing.T) {
	store := newPineconeTestStore(t, "http://unused.invalid", 4)
	assert.ErrorIs(t, store.Remove(context.Background(), "doc-1"), ErrRemoveUnsupported)
}

func TestPineconeStore_Clear(t *testing.T) {
	fake := &fakePinecone{}
	ts := httptest.NewServer(fake.handler(t))
	defer ts.Close()

	store := newPineconeTestStore(t, ts.URL, 4)
	require.NoError(t, store.Clear(context.Background()))

	require.Len(t, fake.deletes, 1)
	assert.True(t, fake.deletes[0].DeleteAll)
	assert.Equal(t, "docs", fake.deletes[0].Namespace)
}

func TestPineconeStore_HealthAndCount(t *testing.T) {
	fake := &fakePinecone{dimension: 4, vectorCount: 42}
	ts := httptest.NewServer(fake.handler(t))
	defer ts.Close()

	store := newPineconeTestStore(t, ts.URL, 4)
	require.NoError(t, store.Health(context.Background()))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	mismatched := newPineconeTestStore(t, ts.URL, 8)
	assert.ErrorIs(t, mismatched.Health(context.Background()), ranking.ErrDimensionMismatch)
}

func TestNewPineconeStore_Defaults(t *testing.T) {
	store, err := NewPineconeStore(PineconeConfig{APIKey: "k", Host: "idx.svc.pinecone.io"}, &fixedEmbedder{dims: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://idx.svc.pinecone.io", store.client.BaseURL())
	assert.Equal(t, "pinecone/default", store.Name())
}
