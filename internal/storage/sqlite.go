package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var _ Repository = (*SQLiteRepository)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL,
    vector BLOB,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id, chunk_index);
`

// SQLiteRepository persists documents and chunk vectors in a SQLite database.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// NewSQLiteRepository opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRepository{db: db, path: path}, nil
}

func (r *SQLiteRepository) SaveDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, metadata, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, content = excluded.content,
		 metadata = excluded.metadata, updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, encodeMetadata(doc.Metadata), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete old chunks for %s: %w", doc.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, chunk_index, content, vector, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, c.Index, c.Content, encodeVector(c.Vector), createdAt.UnixNano()); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", c.Index, doc.ID, err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *SQLiteRepository) Document(ctx context.Context, id string) (*Document, error) {
	var doc Document
	var metadata string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, content, metadata FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	doc.Metadata = decodeMetadata(metadata)
	return &doc, nil
}

func (r *SQLiteRepository) Documents(ctx context.Context, ids []string) (map[string]Document, error) {
	out := make(map[string]Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, content, metadata FROM documents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc Document
		var metadata string
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &metadata); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Metadata = decodeMetadata(metadata)
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, content, metadata FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var metadata string
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &metadata); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Metadata = decodeMetadata(metadata)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *SQLiteRepository) Chunks(ctx context.Context, documentID string) ([]Chunk, error) {
	return r.queryChunks(ctx,
		`SELECT id, document_id, chunk_index, content, vector, created_at FROM chunks
		 WHERE document_id = ? ORDER BY chunk_index`, documentID)
}

func (r *SQLiteRepository) AllChunks(ctx context.Context) ([]Chunk, error) {
	return r.queryChunks(ctx,
		`SELECT id, document_id, chunk_index, content, vector, created_at FROM chunks
		 ORDER BY document_id, chunk_index`)
}

func (r *SQLiteRepository) ChunkCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Path returns the database location.
func (r *SQLiteRepository) Path() string {
	return r.path
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) queryChunks(ctx context.Context, query string, args ...any) ([]Chunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var vector []byte
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &vector, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Vector = decodeVector(vector)
		c.CreatedAt = time.Unix(0, createdAt).UTC()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// encodeVector packs a vector as little-endian float32 values. nil stays NULL.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

// Metadata is stored as "key=value" lines; keys and values must not contain newlines.
func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m))
	for k, v := range m {
		lines = append(lines, k+"="+strings.ReplaceAll(v, "\n", " "))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func decodeMetadata(s string) map[string]string {
	if s == "" {
		return nil
	}
	m := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			m[k] = v
		}
	}
	return m
}
