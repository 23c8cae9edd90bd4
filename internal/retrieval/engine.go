// Package retrieval composes chunking, embedding and vector search into
// document ingestion and similarity queries.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bull/retrieval-engine/internal/chunker"
	"github.com/bull/retrieval-engine/internal/embedding"
	"github.com/bull/retrieval-engine/internal/ranking"
	"github.com/bull/retrieval-engine/internal/storage"
	"github.com/bull/retrieval-engine/internal/vectorstore"
)

const (
	DefaultTopK        = 5
	DefaultConcurrency = 4
	MaxConcurrency     = 16
)

// ErrInvalidDocument is returned for documents that cannot be ingested.
var ErrInvalidDocument = errors.New("invalid document")

// Engine ingests documents into a vector store and answers similarity queries.
type Engine struct {
	chunker     *chunker.Chunker
	embeddings  *embedding.Manager
	store       vectorstore.Store
	documents   storage.DocumentFinder
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithConcurrency bounds in-flight embedding calls during ingestion (1-16).
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithDocuments resolves document titles for Context.
func WithDocuments(documents storage.DocumentFinder) Option {
	return func(e *Engine) { e.documents = documents }
}

// New creates an Engine.
func New(c *chunker.Chunker, m *embedding.Manager, s vectorstore.Store, opts ...Option) (*Engine, error) {
	if c == nil || m == nil || s == nil {
		return nil, errors.New("retrieval: chunker, embeddings manager and store are required")
	}

	e := &Engine{
		chunker:     c,
		embeddings:  m,
		store:       s,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.concurrency < 1 || e.concurrency > MaxConcurrency {
		return nil, fmt.Errorf("retrieval: concurrency must be between 1 and %d, got %d", MaxConcurrency, e.concurrency)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Embeddings returns the engine's embeddings manager.
func (e *Engine) Embeddings() *embedding.Manager { return e.embeddings }

// Store returns the engine's vector store.
func (e *Engine) Store() vectorstore.Store { return e.store }

// ChunkID derives the stable ID of a document's index-th chunk.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID+"#"+strconv.Itoa(index))).String()
}

// IngestReport describes one ingested document.
type IngestReport struct {
	// Chunks are ordered by Index and carry their vectors.
	Chunks []storage.Chunk
	// Fallback counts chunks embedded by the hash fallback rather than the
	// active provider.
	Fallback int
}

// Degraded reports whether any chunk was embedded by the fallback.
func (r *IngestReport) Degraded() bool { return r.Fallback > 0 }

// Ingest chunks doc, embeds every chunk and hands the batch to the store.
// The returned chunks are ordered by Index and carry their vectors so the
// caller can persist them.
//
// Embedding runs on a bounded worker pool. If ctx is cancelled before the
// batch is complete nothing is added to the store. A document with no
// content worth chunking yields no chunks and no error.
func (e *Engine) Ingest(ctx context.Context, doc storage.Document) ([]storage.Chunk, error) {
	report, err := e.IngestWithReport(ctx, doc)
	if err != nil {
		return nil, err
	}
	return report.Chunks, nil
}

// IngestWithReport is Ingest that also reports how many chunks fell back to
// hash embeddings.
func (e *Engine) IngestWithReport(ctx context.Context, doc storage.Document) (*IngestReport, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: empty document ID", ErrInvalidDocument)
	}

	start := time.Now()
	texts := e.chunker.Split(doc.Content)
	if len(texts) == 0 {
		e.logger.Info("Document has no chunks", "document_id", doc.ID)
		return &IngestReport{Chunks: []storage.Chunk{}}, nil
	}

	createdAt := e.now().UTC()
	chunks := make([]storage.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = storage.Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Content:    text,
			Index:      i,
			CreatedAt:  createdAt,
		}
	}

	// Each worker writes only its own slot, so results land in index order
	// whatever the completion order.
	var fallback atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, fromProvider := e.embeddings.EmbedWithSource(gctx, chunks[i].Content)
			if !fromProvider {
				fallback.Add(1)
			}
			chunks[i].Vector = v
			e.logger.Debug("Embedded chunk", "document_id", doc.ID, "index", i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", doc.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", doc.ID, err)
	}

	if err := e.store.Add(ctx, chunks); err != nil {
		var ingestErr *storage.IngestError
		if errors.As(err, &ingestErr) {
			ingestErr.DocumentID = doc.ID
			return nil, ingestErr
		}
		return nil, fmt.Errorf("ingest %s: add chunks: %w", doc.ID, err)
	}

	report := &IngestReport{Chunks: chunks, Fallback: int(fallback.Load())}
	e.logger.Info("Ingested document",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"fallback_chunks", report.Fallback,
		"store", e.store.Name(),
		"duration", time.Since(start),
	)
	return report, nil
}

// Query returns up to k chunks most similar to text. k <= 0 uses DefaultTopK.
// Blank text returns no results.
func (e *Engine) Query(ctx context.Context, text string, k int) ([]storage.RankedChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if strings.TrimSpace(text) == "" {
		return []storage.RankedChunk{}, nil
	}

	ranked, err := e.store.Search(ctx, text, k)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	e.logger.Debug("Query complete", "results", len(ranked), "k", k)
	return ranked, nil
}

// Context runs Query and renders the results as attributed context text.
// An empty string means nothing relevant was found.
func (e *Engine) Context(ctx context.Context, text string, k int) (string, []storage.RankedChunk, error) {
	ranked, err := e.Query(ctx, text, k)
	if err != nil {
		return "", nil, err
	}
	if len(ranked) == 0 {
		return "", ranked, nil
	}

	var docs map[string]storage.Document
	if e.documents != nil {
		docs, err = e.documents.Documents(ctx, ranking.DocumentIDs(ranked))
		if err != nil {
			// Attribution degrades to the unknown-document placeholder.
			e.logger.Warn("Failed to resolve documents for context", "error", err)
			docs = nil
		}
	}

	return ranking.AssembleContext(ranked, docs), ranked, nil
}

// Remove deletes a document's vectors from the store.
func (e *Engine) Remove(ctx context.Context, documentID string) error {
	return e.store.Remove(ctx, documentID)
}

// Clear deletes every vector from the store.
func (e *Engine) Clear(ctx context.Context) error {
	return e.store.Clear(ctx)
}

// Close releases the store's connections if it holds any.
func (e *Engine) Close() error {
	if c, ok := e.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
