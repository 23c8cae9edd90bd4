package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

const (
	// DefaultOpenAIModel is the OpenAI model used when none is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimensions is the native vector size of text-embedding-3-small.
	DefaultOpenAIDimensions = 1536
)

// OpenAIConfig configures OpenAIProvider.
type OpenAIConfig struct {
	APIKey string
	Model  string

	// Dimensions is sent to the API when it differs from the model default,
	// letting text-embedding-3 models return shortened vectors.
	Dimensions int

	// BaseURL overrides the API endpoint (proxies, compatible servers, tests).
	BaseURL string

	Timeout           time.Duration
	RequestsPerSecond float64
}

// OpenAIProvider embeds text through the OpenAI embeddings API.
// Rate limit responses (HTTP 429) are retried with exponential backoff
// inside the call timeout; other errors fail immediately.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
	timeout    time.Duration
	limiter    *rate.Limiter
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI provider. An API key is required.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key not set", ErrProviderUnavailable)
	}

	p := &OpenAIProvider{
		model:      orDefault(cfg.Model, DefaultOpenAIModel),
		dimensions: orDefault(cfg.Dimensions, DefaultOpenAIDimensions),
		timeout:    orDefault(cfg.Timeout, DefaultTimeout),
		limiter:    newLimiter(cfg.RequestsPerSecond),
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are handled by backoff so they stay inside the call timeout.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	p.client = openai.NewClient(opts...)

	return p, nil
}

func (p *OpenAIProvider) Name() string    { return "openai:" + p.model }
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Embed returns the unit-normalized embedding for text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := wait(ctx, p.limiter); err != nil {
		return nil, callError(p.Name(), p.timeout, err)
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(p.model),
	}
	if p.dimensions != DefaultOpenAIDimensions {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	var embedding []float64
	operation := func() error {
		resp, err := p.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(errors.New("response contained no embeddings"))
		}
		embedding = resp.Data[0].Embedding
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = p.timeout

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, callError(p.Name(), p.timeout, err)
	}

	return finish(p.Name(), embedding, p.dimensions)
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
