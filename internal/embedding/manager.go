package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInitRetry is the minimum gap between attempts to initialize an
// unavailable provider.
const DefaultInitRetry = 30 * time.Second

// Manager owns the active Provider and a bounded embedding cache.
//
// Embed never fails: when the provider returns an error the text is embedded
// with a HashProvider of the same dimension instead and the failure is
// logged. The fallback is per call; the active provider is kept.
//
// A provider that implements Initializer and reports ErrProviderUnavailable
// is initialized again, at most once per retry interval, so a model server
// that comes up after startup is picked up without a restart.
type Manager struct {
	mu       sync.RWMutex
	provider Provider
	cache    *vectorCache
	logger   *slog.Logger

	initMu    sync.Mutex
	initRetry time.Duration
	lastInit  time.Time
	now       func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	cacheSize int
	initRetry time.Duration
	logger    *slog.Logger
}

// WithCacheSize bounds the number of cached embeddings.
func WithCacheSize(n int) ManagerOption {
	return func(o *managerOptions) { o.cacheSize = n }
}

// WithLogger sets the logger used for recovered provider failures.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) { o.logger = logger }
}

// WithInitRetry sets the minimum gap between initialization attempts for an
// unavailable provider. Zero retries on every failed call.
func WithInitRetry(d time.Duration) ManagerOption {
	return func(o *managerOptions) { o.initRetry = d }
}

// NewManager creates a Manager around provider.
func NewManager(provider Provider, opts ...ManagerOption) (*Manager, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrProviderUnavailable)
	}

	o := managerOptions{cacheSize: DefaultCacheSize, initRetry: DefaultInitRetry}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cache, err := newVectorCache(o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Manager{
		provider:  provider,
		cache:     cache,
		logger:    o.logger,
		initRetry: o.initRetry,
		now:       time.Now,
	}, nil
}

// Embed returns the embedding for text, serving repeated texts from the cache.
func (m *Manager) Embed(ctx context.Context, text string) []float32 {
	v, _ := m.EmbedWithSource(ctx, text)
	return v
}

// EmbedWithSource is Embed that also reports whether the vector came from
// the active provider. false means the hash fallback produced it.
func (m *Manager) EmbedWithSource(ctx context.Context, text string) ([]float32, bool) {
	if v, ok := m.cache.get(text); ok {
		return v, true
	}

	v, ok := m.embed(ctx, text)
	if ok {
		m.cache.put(text, v)
	}
	return v, ok
}

// EmbedUncached embeds text without reading or writing the cache.
func (m *Manager) EmbedUncached(ctx context.Context, text string) []float32 {
	v, _ := m.embed(ctx, text)
	return v
}

// embed calls the active provider, falling back to hashing on failure.
// ok reports whether the vector came from the active provider.
func (m *Manager) embed(ctx context.Context, text string) (v []float32, ok bool) {
	provider := m.activeProvider()

	v, err := provider.Embed(ctx, text)
	if errors.Is(err, ErrProviderUnavailable) && m.reinit(ctx, provider) {
		v, err = provider.Embed(ctx, text)
	}
	if err == nil && len(v) != provider.Dimensions() {
		err = fmt.Errorf("%w: %s: expected %d dimensions, got %d", ErrProvider, provider.Name(), provider.Dimensions(), len(v))
	}
	if err == nil {
		return v, true
	}

	m.logger.Warn("embedding provider failed, using hash fallback",
		"provider", provider.Name(),
		"error", err)

	fallback, _ := NewHashProvider(provider.Dimensions()).Embed(ctx, text)
	return fallback, false
}

// reinit initializes provider again if it supports it and the retry
// interval has passed. It reports whether initialization succeeded.
func (m *Manager) reinit(ctx context.Context, provider Provider) bool {
	initializer, ok := provider.(Initializer)
	if !ok {
		return false
	}

	m.initMu.Lock()
	now := m.now()
	if !m.lastInit.IsZero() && now.Sub(m.lastInit) < m.initRetry {
		m.initMu.Unlock()
		return false
	}
	m.lastInit = now
	m.initMu.Unlock()

	if err := initializer.Init(ctx); err != nil {
		m.logger.Debug("embedding provider still unavailable", "provider", provider.Name(), "error", err)
		return false
	}
	m.logger.Info("embedding provider initialized", "provider", provider.Name())
	return true
}

// ProviderName returns the active provider's name.
func (m *Manager) ProviderName() string {
	return m.activeProvider().Name()
}

// Dimensions returns the active provider's vector size.
func (m *Manager) Dimensions() int {
	return m.activeProvider().Dimensions()
}

// SetProvider swaps the active provider and drops every cached embedding.
func (m *Manager) SetProvider(p Provider) {
	m.mu.Lock()
	m.provider = p
	m.mu.Unlock()
	m.initMu.Lock()
	m.lastInit = time.Time{}
	m.initMu.Unlock()
	m.cache.purge()
}

// ClearCache drops every cached embedding.
func (m *Manager) ClearCache() {
	m.cache.purge()
}

// CacheLen returns the number of cached embeddings.
func (m *Manager) CacheLen() int {
	return m.cache.len()
}

func (m *Manager) activeProvider() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider
}
