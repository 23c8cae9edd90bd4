package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/retrieval-engine/internal/loader"
	"github.com/bull/retrieval-engine/internal/ranking"
	"github.com/bull/retrieval-engine/internal/retrieval"
	"github.com/bull/retrieval-engine/internal/storage"
	"github.com/bull/retrieval-engine/internal/vectorstore"
)

const maxTopK = 50

// ErrInvalidInput is returned for tool calls with unusable arguments.
var ErrInvalidInput = errors.New("invalid input")

// makeSearchHandler creates the search_chunks tool handler.
// Search flow:
// 1. Rank chunks against the query
// 2. Drop chunks below MinScore
// 3. Resolve document titles and assemble the context block
func makeSearchHandler(engine *retrieval.Engine, docs storage.DocumentFinder) func(
	context.Context, *mcp.CallToolRequest, SearchChunksInput,
) (*mcp.CallToolResult, SearchChunksOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchChunksInput) (
		*mcp.CallToolResult, SearchChunksOutput, error,
	) {
		if strings.TrimSpace(input.Query) == "" {
			return nil, SearchChunksOutput{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
		}
		topK := min(input.TopK, maxTopK)

		ranked, err := engine.Query(ctx, input.Query, topK)
		if err != nil {
			return nil, SearchChunksOutput{}, fmt.Errorf("search failed: %w", err)
		}

		kept := ranked[:0]
		for _, rc := range ranked {
			if input.MinScore != 0 && rc.Score < input.MinScore {
				continue
			}
			kept = append(kept, rc)
		}

		if len(kept) == 0 {
			return nil, SearchChunksOutput{
				Results: []ChunkResult{},
				Message: "No matching chunks found. Try broader search terms or ingest more documents.",
			}, nil
		}

		byID, err := docs.Documents(ctx, ranking.DocumentIDs(kept))
		if err != nil {
			// Titles fall back to the unknown-document placeholder.
			byID = nil
		}

		results := make([]ChunkResult, len(kept))
		for i, rc := range kept {
			title := byID[rc.Chunk.DocumentID].Title
			if title == "" {
				title = storage.UnknownDocumentTitle
			}
			results[i] = ChunkResult{
				DocumentID: rc.Chunk.DocumentID,
				Title:      title,
				ChunkIndex: rc.Chunk.Index,
				Content:    rc.Chunk.Content,
				Score:      rc.Score,
			}
		}

		return nil, SearchChunksOutput{
			Context: ranking.AssembleContext(kept, byID),
			Results: results,
		}, nil
	}
}

// makeIngestHandler creates the ingest_document tool handler.
func makeIngestHandler(pipeline *retrieval.Pipeline, allowFiles bool) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
		*mcp.CallToolResult, IngestDocumentOutput, error,
	) {
		var doc *storage.Document
		switch {
		case input.Path != "":
			if !allowFiles {
				return nil, IngestDocumentOutput{}, fmt.Errorf("%w: file ingestion is disabled on this server", ErrInvalidInput)
			}
			loaded, err := loader.LoadFile(input.Path)
			if err != nil {
				return nil, IngestDocumentOutput{}, err
			}
			doc = loaded
		case input.ID != "":
			doc = &storage.Document{
				ID:       input.ID,
				Title:    input.Title,
				Content:  input.Content,
				Metadata: map[string]string{retrieval.MetaSource: "mcp"},
			}
		default:
			return nil, IngestDocumentOutput{}, fmt.Errorf("%w: either path or id is required", ErrInvalidInput)
		}

		chunks, unchanged, err := pipeline.IndexDocument(ctx, *doc)
		if err != nil {
			return nil, IngestDocumentOutput{}, fmt.Errorf("ingest %s: %w", doc.ID, err)
		}

		return nil, IngestDocumentOutput{
			DocumentID: doc.ID,
			Chunks:     chunks,
			Unchanged:  unchanged,
		}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(repo storage.Repository) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		docs, err := repo.ListDocuments(ctx)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		summaries := make([]DocumentSummary, len(docs))
		for i, doc := range docs {
			summaries[i] = DocumentSummary{ID: doc.ID, Title: doc.Title, Metadata: doc.Metadata}
		}
		return nil, ListDocumentsOutput{Documents: summaries, Count: len(summaries)}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
// A store that cannot be counted is reported, not treated as a tool error.
func makeStatusHandler(engine *retrieval.Engine, repo storage.Repository) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		docs, err := repo.ListDocuments(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}
		chunks, err := repo.ChunkCount(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("failed to count chunks: %w", err)
		}

		out := StatusOutput{
			TotalDocs:    len(docs),
			TotalChunks:  chunks,
			Provider:     engine.Embeddings().ProviderName(),
			Dimensions:   engine.Embeddings().Dimensions(),
			Store:        engine.Store().Name(),
			CacheEntries: engine.Embeddings().CacheLen(),
		}

		if counter, ok := engine.Store().(vectorstore.Counter); ok {
			n, err := counter.Count(ctx)
			if err != nil {
				out.StoreError = err.Error()
			} else {
				out.StoreVectors = &n
			}
		}
		return nil, out, nil
	}
}
