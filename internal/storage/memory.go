package storage

import (
	"context"
	"sort"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps documents and chunks in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	docs   map[string]Document
	chunks map[string][]Chunk // documentID -> chunks ordered by Index
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:   make(map[string]Document),
		chunks: make(map[string][]Chunk),
	}
}

func (r *MemoryRepository) SaveDocument(_ context.Context, doc Document, chunks []Chunk) error {
	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	r.chunks[doc.ID] = ordered
	return nil
}

func (r *MemoryRepository) DeleteDocument(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(r.docs, id)
	delete(r.chunks, id)
	return nil
}

func (r *MemoryRepository) Document(_ context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &doc, nil
}

func (r *MemoryRepository) Documents(_ context.Context, ids []string) (map[string]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Document, len(ids))
	for _, id := range ids {
		if doc, ok := r.docs[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

// ListDocuments returns all documents sorted by ID.
func (r *MemoryRepository) ListDocuments(_ context.Context) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (r *MemoryRepository) Chunks(_ context.Context, documentID string) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunks := r.chunks[documentID]
	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// AllChunks returns every chunk, grouped by document ID then ordered by Index.
func (r *MemoryRepository) AllChunks(_ context.Context) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.chunks))
	for id := range r.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Chunk
	for _, id := range ids {
		out = append(out, r.chunks[id]...)
	}
	return out, nil
}

func (r *MemoryRepository) ChunkCount(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, chunks := range r.chunks {
		n += len(chunks)
	}
	return n, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
