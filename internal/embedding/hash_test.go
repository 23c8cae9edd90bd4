package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashProvider_UnitNorm(t *testing.T) {
	p := NewHashProvider(384)
	texts := []string{
		"birds can fly",
		"Cars drive on roads",
		"a",
		"the the the the",
		"Unicode text: café naïve 日本語",
	}

	for _, text := range texts {
		v, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, v, 384)
		assert.InDelta(t, 1.0, norm(v), 1e-6, "text %q", text)
	}
}

func TestHashProvider_EmptyTextIsZeroVector(t *testing.T) {
	p := NewHashProvider(16)
	for _, text := range []string{"", "   ", "\n\t"} {
		v, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, v, 16)
		for _, x := range v {
			assert.False(t, math.IsNaN(float64(x)))
			assert.Zero(t, x)
		}
	}
}

func TestHashProvider_Deterministic(t *testing.T) {
	a, _ := NewHashProvider(64).Embed(context.Background(), "Birds can FLY")
	b, _ := NewHashProvider(64).Embed(context.Background(), "birds   can fly")
	assert.Equal(t, a, b, "case and whitespace must not matter")
}

func TestHashProvider_Defaults(t *testing.T) {
	p := NewHashProvider(0)
	assert.Equal(t, DefaultHashDimensions, p.Dimensions())
	assert.Equal(t, "hash:384", p.Name())
}

func TestBucket(t *testing.T) {
	tests := []struct {
		word string
		want int
	}{
		{"a", 97},
		{"birds", 346},
		{"hello", 82},
		// int32 overflow makes this hash negative.
		{"supercalifragilistic", 359},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bucket(tt.word, 384), tt.word)
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}
