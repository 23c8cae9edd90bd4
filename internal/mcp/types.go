// Package mcp exposes the retrieval engine as Model Context Protocol tools.
package mcp

// SearchChunksInput defines the input parameters for the search_chunks tool.
type SearchChunksInput struct {
	Query    string  `json:"query" jsonschema:"the text to find similar chunks for"`
	TopK     int     `json:"top_k,omitempty" jsonschema:"maximum number of chunks to return (default 5, max 50)"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"drop chunks scoring below this cosine similarity (-1 to 1)"`
}

// SearchChunksOutput contains the ranked chunks and the assembled context.
type SearchChunksOutput struct {
	// Context is the ranked chunks rendered as "[From: title]" blocks.
	Context string        `json:"context"`
	Results []ChunkResult `json:"results"`
	Message string        `json:"message,omitempty"`
}

// ChunkResult is one ranked chunk.
type ChunkResult struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// IngestDocumentInput defines the input parameters for the ingest_document tool.
// Either Path or ID with Content must be set.
type IngestDocumentInput struct {
	ID      string `json:"id,omitempty" jsonschema:"document ID for inline content"`
	Title   string `json:"title,omitempty" jsonschema:"document title for inline content"`
	Content string `json:"content,omitempty" jsonschema:"inline document text"`
	Path    string `json:"path,omitempty" jsonschema:"path of a .txt .md or .html file readable by the server"`
}

// IngestDocumentOutput reports the outcome of an ingestion.
type IngestDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Unchanged  bool   `json:"unchanged"`
}

// ListDocumentsInput takes no parameters.
type ListDocumentsInput struct{}

// ListDocumentsOutput lists every indexed document.
type ListDocumentsOutput struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

// DocumentSummary describes an indexed document without its content.
type DocumentSummary struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the index and the active components.
type StatusOutput struct {
	TotalDocs    int    `json:"total_docs"`
	TotalChunks  int    `json:"total_chunks"`
	StoreVectors *int   `json:"store_vectors,omitempty"`
	Provider     string `json:"provider"`
	Dimensions   int    `json:"dimensions"`
	Store        string `json:"store"`
	CacheEntries int    `json:"cache_entries"`
	StoreError   string `json:"store_error,omitempty"`
}
