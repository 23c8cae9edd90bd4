package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/bull/retrieval-engine/internal/storage"
	"github.com/bull/retrieval-engine/internal/vectorstore"
)

// Metadata keys the pipeline records on every document it indexes.
const (
	MetaSource   = "source"
	MetaRef      = "source_ref"
	MetaProvider = "embedding_provider"
)

// FallbackProvider is recorded as MetaProvider when any chunk of a document
// was embedded by the hash fallback. It never matches a provider name, so
// the next sync embeds the document again.
const FallbackProvider = "fallback"

// Source lists and fetches documents from somewhere (a directory, a GitHub tree).
type Source interface {
	Name() string
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, ref string) (*storage.Document, error)
}

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	UnchangedDocs  int
	RemovedDocs    int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Ref    string
	Reason string
}

// Pipeline keeps a caller-owned repository in step with the engine's store.
type Pipeline struct {
	engine *Engine
	repo   storage.Repository
	logger *slog.Logger
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(engine *Engine, repo storage.Repository, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{engine: engine, repo: repo, logger: logger}
}

// IndexAll indexes every document src lists, then removes documents that
// src indexed earlier but no longer lists. A failing document is recorded
// and skipped; it is not removed while src still lists it.
func (p *Pipeline) IndexAll(ctx context.Context, src Source) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	refs, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", src.Name(), err)
	}
	result.TotalDocs = len(refs)
	p.logger.Info("Found documents", "source", src.Name(), "count", len(refs))

	listed := make(map[string]bool, len(refs))
	for _, ref := range refs {
		listed[ref] = true
	}

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := src.Fetch(ctx, ref)
		if err != nil {
			p.logger.Warn("Failed to fetch document", "ref", ref, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Ref: ref, Reason: err.Error()})
			continue
		}
		seen[doc.ID] = true

		if doc.Metadata == nil {
			doc.Metadata = map[string]string{}
		}
		doc.Metadata[MetaSource] = src.Name()
		doc.Metadata[MetaRef] = ref

		chunks, unchanged, err := p.IndexDocument(ctx, *doc)
		if err != nil {
			p.logger.Warn("Failed to index document", "ref", ref, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Ref: ref, Reason: err.Error()})
			continue
		}
		if unchanged {
			result.UnchangedDocs++
		}
		result.SuccessfulDocs++
		result.TotalChunks += chunks
	}

	removed, err := p.prune(ctx, src.Name(), listed, seen, len(result.FailedDocs) > 0)
	if err != nil {
		return nil, err
	}
	result.RemovedDocs = removed

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"unchanged", result.UnchangedDocs,
		"removed", result.RemovedDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, nil
}

// IndexDocument ingests doc and persists it with its chunks. A document
// whose title and content are unchanged since it was last indexed with the
// same provider is skipped and reported as unchanged.
func (p *Pipeline) IndexDocument(ctx context.Context, doc storage.Document) (chunks int, unchanged bool, err error) {
	provider := p.engine.Embeddings().ProviderName()

	existing, err := p.repo.Document(ctx, doc.ID)
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
		existing = nil
	case err != nil:
		return 0, false, fmt.Errorf("load %s: %w", doc.ID, err)
	}

	if existing != nil {
		if existing.Content == doc.Content && existing.Title == doc.Title && existing.Metadata[MetaProvider] == provider {
			n, err := p.repo.Chunks(ctx, doc.ID)
			if err != nil {
				return 0, false, fmt.Errorf("load chunks for %s: %w", doc.ID, err)
			}
			p.logger.Debug("Document unchanged", "document_id", doc.ID)
			return len(n), true, nil
		}
		if err := p.removeVectors(ctx, doc.ID); err != nil {
			return 0, false, err
		}
	}

	report, err := p.engine.IngestWithReport(ctx, doc)
	if err != nil {
		return 0, false, err
	}

	doc.Metadata = maps.Clone(doc.Metadata)
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}
	doc.Metadata[MetaProvider] = provider
	if report.Degraded() {
		p.logger.Warn("Document embedded with hash fallback, will be re-embedded on next sync",
			"document_id", doc.ID,
			"fallback_chunks", report.Fallback,
			"chunks", len(report.Chunks),
		)
		doc.Metadata[MetaProvider] = FallbackProvider
	}

	if err := p.repo.SaveDocument(ctx, doc, report.Chunks); err != nil {
		return 0, false, fmt.Errorf("save %s: %w", doc.ID, err)
	}
	return len(report.Chunks), false, nil
}

// RemoveDocument deletes a document from the store and the repository.
func (p *Pipeline) RemoveDocument(ctx context.Context, id string) error {
	if err := p.removeVectors(ctx, id); err != nil {
		return err
	}
	return p.repo.DeleteDocument(ctx, id)
}

// ClearAll empties the store, the repository and the embedding cache.
func (p *Pipeline) ClearAll(ctx context.Context) (int, error) {
	if err := p.engine.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear store: %w", err)
	}

	docs, err := p.repo.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		if err := p.repo.DeleteDocument(ctx, doc.ID); err != nil {
			return 0, fmt.Errorf("delete %s: %w", doc.ID, err)
		}
	}

	p.engine.Embeddings().ClearCache()
	p.logger.Info("Cleared index", "documents", len(docs))
	return len(docs), nil
}

// prune removes documents from source whose ref was not listed in this run.
// Documents indexed without a ref are matched by ID instead, and are kept
// when any fetch failed since their ref is unknown.
func (p *Pipeline) prune(ctx context.Context, source string, listed, seen map[string]bool, fetchFailed bool) (int, error) {
	docs, err := p.repo.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	removed := 0
	for _, doc := range docs {
		if doc.Metadata[MetaSource] != source || seen[doc.ID] {
			continue
		}
		if ref, ok := doc.Metadata[MetaRef]; ok {
			if listed[ref] {
				continue
			}
		} else if fetchFailed {
			continue
		}
		if err := p.RemoveDocument(ctx, doc.ID); err != nil {
			return removed, fmt.Errorf("prune %s: %w", doc.ID, err)
		}
		p.logger.Info("Removed stale document", "document_id", doc.ID)
		removed++
	}
	return removed, nil
}

// removeVectors deletes a document's vectors, tolerating stores that cannot.
func (p *Pipeline) removeVectors(ctx context.Context, id string) error {
	err := p.engine.Remove(ctx, id)
	if errors.Is(err, vectorstore.ErrRemoveUnsupported) {
		p.logger.Warn("Store cannot remove vectors by document; stale vectors may remain", "document_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove vectors for %s: %w", id, err)
	}
	return nil
}
