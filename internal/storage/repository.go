package storage

import "context"

// ChunkSource exposes every stored chunk for a full similarity scan.
type ChunkSource interface {
	AllChunks(ctx context.Context) ([]Chunk, error)
}

// DocumentFinder resolves documents for context attribution.
// Missing ids are simply absent from the returned map.
type DocumentFinder interface {
	Documents(ctx context.Context, ids []string) (map[string]Document, error)
}

// Repository is the caller-owned persistence for documents and their chunks.
// The engine never writes to it; hosts persist the chunks Ingest returns.
type Repository interface {
	ChunkSource
	DocumentFinder

	// SaveDocument stores doc and atomically replaces its chunk set.
	SaveDocument(ctx context.Context, doc Document, chunks []Chunk) error
	DeleteDocument(ctx context.Context, id string) error
	Document(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	Chunks(ctx context.Context, documentID string) ([]Chunk, error)
	ChunkCount(ctx context.Context) (int, error)
	Close() error
}
