package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/retrieval-engine/internal/chunker"
	"github.com/bull/retrieval-engine/internal/embedding"
	"github.com/bull/retrieval-engine/internal/storage"
	"github.com/bull/retrieval-engine/internal/vectorstore"
)

// countingProvider wraps the hash provider and counts calls.
type countingProvider struct {
	*embedding.HashProvider
	calls atomic.Int64
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	return p.HashProvider.Embed(ctx, text)
}

// recordingStore remembers every Add and Remove and can fail on demand.
type recordingStore struct {
	mu      sync.Mutex
	added   [][]storage.Chunk
	removed []string
	cleared int
	addErr  error
}

func (s *recordingStore) Name() string { return "recording" }

func (s *recordingStore) Add(_ context.Context, chunks []storage.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.added = append(s.added, chunks)
	return nil
}

func (s *recordingStore) Search(context.Context, string, int) ([]storage.RankedChunk, error) {
	return []storage.RankedChunk{}, nil
}

func (s *recordingStore) Remove(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, documentID)
	return nil
}

func (s *recordingStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	return nil
}

func testChunker(t *testing.T, size, overlap int) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(chunker.WithChunkSize(size), chunker.WithOverlap(overlap), chunker.WithMinLength(1))
	require.NoError(t, err)
	return c
}

func testManager(t *testing.T, p embedding.Provider) *embedding.Manager {
	t.Helper()
	m, err := embedding.NewManager(p)
	require.NoError(t, err)
	return m
}

// newLocalEngine wires an engine over the local store and a memory repository.
func newLocalEngine(t *testing.T) (*Engine, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	m := testManager(t, embedding.NewHashProvider(0))
	store := vectorstore.NewLocalStore(repo, m, nil)

	e, err := New(testChunker(t, 1000, 200), m, store, WithDocuments(repo))
	require.NoError(t, err)
	return e, repo
}

func ingestAndSave(t *testing.T, e *Engine, repo storage.Repository, doc storage.Document) []storage.Chunk {
	t.Helper()
	ctx := context.Background()
	chunks, err := e.Ingest(ctx, doc)
	require.NoError(t, err)
	require.NoError(t, repo.SaveDocument(ctx, doc, chunks))
	return chunks
}

func TestNew_Validation(t *testing.T) {
	m := testManager(t, embedding.NewHashProvider(0))
	c := testChunker(t, 100, 10)

	_, err := New(nil, m, &recordingStore{})
	assert.Error(t, err)

	_, err = New(c, m, &recordingStore{}, WithConcurrency(0))
	assert.Error(t, err)

	_, err = New(c, m, &recordingStore{}, WithConcurrency(MaxConcurrency+1))
	assert.Error(t, err)

	e, err := New(c, m, &recordingStore{}, WithConcurrency(MaxConcurrency))
	require.NoError(t, err)
	assert.Equal(t, "recording", e.Store().Name())
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, ChunkID("doc-1", 0), ChunkID("doc-1", 0))
	assert.NotEqual(t, ChunkID("doc-1", 0), ChunkID("doc-1", 1))
	assert.NotEqual(t, ChunkID("doc-1", 0), ChunkID("doc-2", 0))
}

func TestEngine_QueryFindsRelevantDocument(t *testing.T) {
	e, repo := newLocalEngine(t)
	ingestAndSave(t, e, repo, storage.Document{ID: "birds", Title: "Birds", Content: "birds can fly high using wings for flight"})
	ingestAndSave(t, e, repo, storage.Document{ID: "cars", Title: "Cars", Content: "cars drive on roads with engines and fuel"})

	ranked, err := e.Query(context.Background(), "flight", 1)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "birds", ranked[0].Chunk.DocumentID)
	assert.Greater(t, ranked[0].Score, 0.0)

	text, ranked, err := e.Context(context.Background(), "flight", 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.True(t, strings.HasPrefix(text, "[From: Birds]\nbirds can fly"), text)
	assert.Contains(t, text, "\n\n[From: Cars]\n")
}

func TestEngine_QueryWithoutSharedWordsKeepsOrder(t *testing.T) {
	e, repo := newLocalEngine(t)
	ingestAndSave(t, e, repo, storage.Document{ID: "doc-a", Title: "Birds", Content: "birds fly"})
	ingestAndSave(t, e, repo, storage.Document{ID: "doc-b", Title: "Cars", Content: "cars drive"})

	// No query word occurs in either document, so scores tie and the
	// repository order decides.
	ranked, err := e.Query(context.Background(), "which document mentions flight", 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "doc-a", ranked[0].Chunk.DocumentID)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
}

func TestEngine_QueryDefaultsAndBlank(t *testing.T) {
	e, repo := newLocalEngine(t)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ingestAndSave(t, e, repo, storage.Document{ID: id, Content: "shared words in document " + id})
	}

	ranked, err := e.Query(context.Background(), "shared words", 0)
	require.NoError(t, err)
	assert.Len(t, ranked, DefaultTopK)

	ranked, err = e.Query(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestEngine_ContextEmpty(t *testing.T) {
	e, _ := newLocalEngine(t)

	text, ranked, err := e.Context(context.Background(), "anything at all", 3)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, ranked)
}

func TestEngine_ContextUnknownDocument(t *testing.T) {
	e, repo := newLocalEngine(t)
	chunks, err := e.Ingest(context.Background(), storage.Document{ID: "orphan", Content: "orphaned flight notes"})
	require.NoError(t, err)
	// Chunks persisted without a matching document row.
	require.NoError(t, repo.SaveDocument(context.Background(), storage.Document{ID: "orphan"}, chunks))

	text, _, err := e.Context(context.Background(), "flight", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "[From: "+storage.UnknownDocumentTitle+"]\n"), text)
}

func TestEngine_IngestInvalidAndEmpty(t *testing.T) {
	e, _ := newLocalEngine(t)

	_, err := e.Ingest(context.Background(), storage.Document{Content: "no id"})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	chunks, err := e.Ingest(context.Background(), storage.Document{ID: "empty", Content: "   "})
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestEngine_IngestPreservesOrderUnderConcurrency(t *testing.T) {
	store := &recordingStore{}
	provider := embedding.NewHashProvider(64)
	m := testManager(t, provider)
	e, err := New(testChunker(t, 20, 5), m, store, WithConcurrency(8))
	require.NoError(t, err)

	words := make([]string, 200)
	for i := range words {
		words[i] = "word" + strings.Repeat("x", i%7)
	}
	chunks, err := e.Ingest(context.Background(), storage.Document{ID: "long", Content: strings.Join(words, " ")})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 10)

	require.Len(t, store.added, 1)
	assert.Equal(t, chunks, store.added[0])
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, ChunkID("long", i), c.ID)
		want, _ := provider.Embed(context.Background(), c.Content)
		assert.Equal(t, want, c.Vector)
	}
}

func TestEngine_IngestUsesCache(t *testing.T) {
	provider := &countingProvider{HashProvider: embedding.NewHashProvider(32)}
	e, err := New(testChunker(t, 1000, 100), testManager(t, provider), &recordingStore{})
	require.NoError(t, err)

	doc := storage.Document{ID: "doc", Content: "the same text twice"}
	first, err := e.Ingest(context.Background(), doc)
	require.NoError(t, err)
	second, err := e.Ingest(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, int64(len(first)), provider.calls.Load())
	assert.Equal(t, first[0].Vector, second[0].Vector)
}

func TestEngine_IngestCancelledAddsNothing(t *testing.T) {
	store := &recordingStore{}
	e, err := New(testChunker(t, 20, 5), testManager(t, embedding.NewHashProvider(16)), store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Ingest(ctx, storage.Document{ID: "doc", Content: strings.Repeat("some words here ", 20)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.added)
}

func TestEngine_IngestPartialFailure(t *testing.T) {
	store := &recordingStore{addErr: &storage.IngestError{FailedIndices: []int{1, 2}, Err: storage.ErrStore}}
	e, err := New(testChunker(t, 20, 5), testManager(t, embedding.NewHashProvider(16)), store)
	require.NoError(t, err)

	_, err = e.Ingest(context.Background(), storage.Document{ID: "doc-9", Content: strings.Repeat("some words here ", 5)})
	require.Error(t, err)

	var ingestErr *storage.IngestError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, "doc-9", ingestErr.DocumentID)
	assert.Equal(t, []int{1, 2}, ingestErr.FailedIndices)
	assert.ErrorIs(t, err, storage.ErrStore)
}

func TestEngine_IngestStoreError(t *testing.T) {
	store := &recordingStore{addErr: errors.New("boom")}
	e, err := New(testChunker(t, 100, 5), testManager(t, embedding.NewHashProvider(16)), store)
	require.NoError(t, err)

	_, err = e.Ingest(context.Background(), storage.Document{ID: "doc", Content: "a few words"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEngine_IngestReportsFallback(t *testing.T) {
	provider := &switchableProvider{HashProvider: embedding.NewHashProvider(32)}
	e, err := New(testChunker(t, 20, 5), testManager(t, provider), &recordingStore{})
	require.NoError(t, err)
	doc := storage.Document{ID: "doc", Content: strings.Repeat("birds can fly. ", 4)}

	provider.down.Store(true)
	report, err := e.IngestWithReport(context.Background(), doc)
	require.NoError(t, err)
	require.NotEmpty(t, report.Chunks)
	assert.True(t, report.Degraded())
	assert.Equal(t, len(report.Chunks), report.Fallback)

	provider.down.Store(false)
	report, err = e.IngestWithReport(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, report.Degraded())
}
