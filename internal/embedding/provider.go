// Package embedding turns text into fixed-length unit vectors.
//
// Several Provider implementations talk to embedding vendors or a local model
// server; Manager wraps one of them with an LRU cache and a deterministic
// hash fallback so that callers always get a vector back.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrProvider is returned for vendor failures: transport errors, non-2xx
	// statuses, malformed bodies and timeouts.
	ErrProvider = errors.New("embedding provider error")

	// ErrProviderUnavailable is returned when a provider cannot serve requests
	// at all, e.g. its model could not be loaded.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 30 * time.Second

// Provider converts text into an embedding vector of Dimensions() length.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// Initializer is implemented by providers that need a one-time setup call
// before the first Embed.
type Initializer interface {
	Init(ctx context.Context) error
}

// Normalize scales v to unit length in place and returns it.
// The zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// finish validates a vendor vector and normalizes it.
func finish(name string, v []float64, dims int) ([]float32, error) {
	if len(v) != dims {
		return nil, fmt.Errorf("%w: %s: expected %d dimensions, got %d", ErrProvider, name, dims, len(v))
	}
	out := make([]float32, len(v))
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: %s: non-finite value at %d", ErrProvider, name, i)
		}
		out[i] = float32(x)
	}
	return Normalize(out), nil
}

// callError maps a failed vendor call onto ErrProvider, calling out timeouts.
func callError(name string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: request timed out after %s: %w", ErrProvider, name, timeout, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, name, err)
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(requestsPerSecond))
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
