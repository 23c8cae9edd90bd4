package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
	DefaultMinLength = 50

	// sentenceBreakRatio is how far into a window a sentence terminal must sit
	// before the window is cut there.
	sentenceBreakRatio = 0.7
)

// ErrInvalidConfig is returned for chunk size/overlap combinations that
// cannot make progress through the text.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Span is one chunk with its rune offsets in the source text.
// Start and End describe the raw window; Text is the trimmed content.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunker splits text into overlapping windows that prefer to end on sentence boundaries.
type Chunker struct {
	size      int
	overlap   int
	minLength int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(n int) Option {
	return func(c *Chunker) { c.size = n }
}

// WithOverlap sets how many characters adjacent windows share.
func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

// WithMinLength sets the trimmed length below which chunks are dropped.
func WithMinLength(n int) Option {
	return func(c *Chunker) { c.minLength = n }
}

// New creates a Chunker. Overlap must be smaller than the chunk size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:      DefaultChunkSize,
		overlap:   DefaultOverlap,
		minLength: DefaultMinLength,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.size <= 0:
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.size)
	case c.overlap < 0:
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.overlap)
	case c.overlap >= c.size:
		return nil, fmt.Errorf("%w: overlap %d must be less than chunk size %d", ErrInvalidConfig, c.overlap, c.size)
	case c.minLength < 0:
		return nil, fmt.Errorf("%w: minimum length must not be negative, got %d", ErrInvalidConfig, c.minLength)
	}
	return c, nil
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunk texts for text in order.
func (c *Chunker) Split(text string) []string {
	spans := c.Spans(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

// Spans walks text in windows of Size runes and returns the kept chunks.
func (c *Chunker) Spans(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	var spans []Span

	for start := 0; start < n; {
		end := start + c.size
		if end > n {
			end = n
		}

		if end < n {
			if cut := lastSentenceEnd(runes, start, end); cut >= 0 &&
				float64(cut) >= float64(start)+sentenceBreakRatio*float64(c.size) {
				end = cut + 1
			}
		}

		chunk := strings.TrimFunc(string(runes[start:end]), unicode.IsSpace)
		if len([]rune(chunk)) >= c.minLength && chunk != "" {
			spans = append(spans, Span{Start: start, End: end, Text: chunk})
		}

		if end >= n {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

// lastSentenceEnd returns the index of the last '.', '?' or '!' in runes[start:end], or -1.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '.', '?', '!':
			return i
		}
	}
	return -1
}
