package storage

import "time"

// Document is a caller-owned text document. The engine only reads it during ingestion.
type Document struct {
	ID       string            // Caller-assigned identifier
	Title    string            // Display title used for context attribution
	Content  string            // Full text content
	Metadata map[string]string // Arbitrary caller metadata (source path, URL...)
}

// Chunk is a bounded, possibly overlapping segment of a document's text.
// Chunks for a document are indexed densely from 0.
type Chunk struct {
	ID         string    // Deterministic UUID derived from DocumentID and Index
	DocumentID string    // Links to parent Document.ID
	Content    string    // Chunk text
	Index      int       // Position in document (0, 1, 2...)
	Vector     []float32 // Unit-normalized embedding, nil until embedded
	CreatedAt  time.Time
}

// RankedChunk is a search hit with its similarity score.
type RankedChunk struct {
	Chunk Chunk
	Score float64 // Cosine similarity, higher is better
}

// UnknownDocumentTitle is used when a chunk's parent document cannot be found.
const UnknownDocumentTitle = "Unknown Document"
