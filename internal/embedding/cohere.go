package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/bull/retrieval-engine/internal/restclient"
)

const (
	DefaultCohereBaseURL    = "https://api.cohere.ai"
	DefaultCohereModel      = "embed-english-v3.0"
	DefaultCohereDimensions = 1024
)

// CohereConfig configures CohereProvider.
type CohereConfig struct {
	APIKey            string
	Model             string
	Dimensions        int
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// CohereProvider embeds text through the Cohere v1 embed endpoint.
type CohereProvider struct {
	client     *restclient.RestClient
	model      string
	dimensions int
	timeout    time.Duration
	limiter    *rate.Limiter
}

var _ Provider = (*CohereProvider)(nil)

type cohereRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type cohereResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewCohereProvider creates a Cohere provider. An API key is required.
func NewCohereProvider(cfg CohereConfig) (*CohereProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: cohere: API key not set", ErrProviderUnavailable)
	}

	timeout := orDefault(cfg.Timeout, DefaultTimeout)
	headers := map[string]string{"Authorization": "Bearer " + cfg.APIKey}

	return &CohereProvider{
		client:     restclient.NewRestClient(orDefault(cfg.BaseURL, DefaultCohereBaseURL), headers, 0),
		model:      orDefault(cfg.Model, DefaultCohereModel),
		dimensions: orDefault(cfg.Dimensions, DefaultCohereDimensions),
		timeout:    timeout,
		limiter:    newLimiter(cfg.RequestsPerSecond),
	}, nil
}

func (p *CohereProvider) Name() string    { return "cohere:" + p.model }
func (p *CohereProvider) Dimensions() int { return p.dimensions }

func (p *CohereProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := wait(ctx, p.limiter); err != nil {
		return nil, callError(p.Name(), p.timeout, err)
	}

	req := cohereRequest{
		Texts:     []string{text},
		Model:     p.model,
		InputType: "search_document",
	}
	var resp cohereResponse
	if err := p.client.PostJSON(ctx, "/v1/embed", req, &resp); err != nil {
		return nil, callError(p.Name(), p.timeout, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: %s: response contained no embeddings", ErrProvider, p.Name())
	}

	return finish(p.Name(), resp.Embeddings[0], p.dimensions)
}
