package embedding

import (
	"strconv"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings the Manager keeps.
const DefaultCacheSize = 10000

// fingerprintPrefix is how many leading runes take part in the cache key.
const fingerprintPrefix = 100

// fingerprint keys the cache by a text prefix plus the full text length.
// Two texts with the same first 100 runes and the same length share a key;
// this is a known limitation, not a content hash.
func fingerprint(text string) string {
	n := utf8.RuneCountInString(text)
	prefix := text
	if n > fingerprintPrefix {
		i, count := 0, 0
		for i = range text {
			if count == fingerprintPrefix {
				break
			}
			count++
		}
		prefix = text[:i]
	}
	return prefix + "|" + strconv.Itoa(n)
}

// vectorCache is a bounded LRU of embeddings. The underlying cache is safe
// for concurrent use; racing writers for one key store the same vector.
type vectorCache struct {
	entries *lru.Cache[string, []float32]
}

func newVectorCache(size int) (*vectorCache, error) {
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &vectorCache{entries: entries}, nil
}

func (c *vectorCache) get(text string) ([]float32, bool) {
	v, ok := c.entries.Get(fingerprint(text))
	if !ok {
		return nil, false
	}
	return clone(v), true
}

func (c *vectorCache) put(text string, v []float32) {
	c.entries.Add(fingerprint(text), clone(v))
}

func (c *vectorCache) purge() { c.entries.Purge() }

func (c *vectorCache) len() int { return c.entries.Len() }

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
