// Package ranking scores stored chunks against a query vector and turns the
// winners into an attributed context block.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bull/retrieval-engine/internal/storage"
)

// ErrDimensionMismatch is returned when vectors of different lengths are
// compared, which means two embedding providers were mixed.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine returns the cosine similarity of a and b, clamped to [-1, 1].
// A zero-norm vector scores 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, score)), nil
}

// Rank scores every candidate that has a vector and returns the best k,
// highest score first. Equal scores keep chunk Index order.
func Rank(query []float32, candidates []storage.Chunk, k int) ([]storage.RankedChunk, error) {
	if k <= 0 {
		return []storage.RankedChunk{}, nil
	}

	ranked := make([]storage.RankedChunk, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		score, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		ranked = append(ranked, storage.RankedChunk{Chunk: c, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Chunk.Index < ranked[j].Chunk.Index
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// AssembleContext renders ranked chunks as "[From: <title>]" blocks separated
// by blank lines. Chunks whose document is missing from docs, or has no
// title, are attributed to storage.UnknownDocumentTitle. No chunks yields "".
func AssembleContext(ranked []storage.RankedChunk, docs map[string]storage.Document) string {
	blocks := make([]string, 0, len(ranked))
	for _, rc := range ranked {
		title := storage.UnknownDocumentTitle
		if doc, ok := docs[rc.Chunk.DocumentID]; ok && doc.Title != "" {
			title = doc.Title
		}
		blocks = append(blocks, "[From: "+title+"]\n"+rc.Chunk.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// DocumentIDs returns the distinct document IDs of ranked in first-seen order.
func DocumentIDs(ranked []storage.RankedChunk) []string {
	seen := make(map[string]bool, len(ranked))
	var ids []string
	for _, rc := range ranked {
		if !seen[rc.Chunk.DocumentID] {
			seen[rc.Chunk.DocumentID] = true
			ids = append(ids, rc.Chunk.DocumentID)
		}
	}
	return ids
}
