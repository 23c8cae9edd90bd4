package embedding

import (
	"context"
	"strconv"
	"strings"
)

// DefaultHashDimensions is the vector size of the hash provider when none is given.
const DefaultHashDimensions = 384

// HashProvider is a deterministic bag-of-words embedding that needs no
// network or model. Each lower-cased word is hashed into a bucket and the
// bucket counts are normalized. Empty text yields the zero vector.
type HashProvider struct {
	dimensions int
}

var _ Provider = (*HashProvider)(nil)

// NewHashProvider creates a hash provider. Non-positive dims use DefaultHashDimensions.
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashProvider{dimensions: dims}
}

func (p *HashProvider) Name() string    { return "hash:" + strconv.Itoa(p.dimensions) }
func (p *HashProvider) Dimensions() int { return p.dimensions }

// Embed never fails.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, p.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		v[bucket(word, p.dimensions)]++
	}
	return Normalize(v), nil
}

// bucket maps word to [0, dims) with a 31-multiplier rolling hash wrapped to int32.
func bucket(word string, dims int) int {
	var h int32
	for _, r := range word {
		h = h*31 + int32(r)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return int(abs % int64(dims))
}
