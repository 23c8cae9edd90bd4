package embedding

import (
	"fmt"
	"time"
)

// Provider kinds accepted by NewProvider.
const (
	KindOpenAI = "openai"
	KindCohere = "cohere"
	KindLocal  = "local"
	KindHash   = "hash"
)

// ProviderConfig selects and configures a provider variant.
type ProviderConfig struct {
	Kind              string
	APIKey            string
	Model             string
	BaseURL           string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewProvider builds the provider named by cfg.Kind. The local provider is
// returned uninitialized; callers run Init through the Initializer interface.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case KindOpenAI:
		p, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindCohere:
		p, err := NewCohereProvider(CohereConfig{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindLocal:
		return NewLocalProvider(LocalConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}), nil
	case KindHash:
		return NewHashProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider kind %q", ErrProviderUnavailable, cfg.Kind)
	}
}
