package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bull/retrieval-engine/internal/restclient"
)

const (
	DefaultLocalBaseURL    = "http://localhost:11434"
	DefaultLocalModel      = "all-minilm"
	DefaultLocalDimensions = 384
)

// LocalConfig configures LocalProvider.
type LocalConfig struct {
	// BaseURL is the Ollama-compatible model server (default http://localhost:11434).
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// LocalProvider runs feature extraction on a locally served model.
// Init must succeed once before Embed is usable; the loaded model is then
// reused for every call.
type LocalProvider struct {
	client     *restclient.RestClient
	model      string
	dimensions int
	timeout    time.Duration

	mu    sync.Mutex
	ready bool
}

var (
	_ Provider    = (*LocalProvider)(nil)
	_ Initializer = (*LocalProvider)(nil)
)

type showRequest struct {
	Model string `json:"model"`
}

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewLocalProvider creates an uninitialized local provider.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	return &LocalProvider{
		client:     restclient.NewRestClient(orDefault(cfg.BaseURL, DefaultLocalBaseURL), nil, 0),
		model:      orDefault(cfg.Model, DefaultLocalModel),
		dimensions: orDefault(cfg.Dimensions, DefaultLocalDimensions),
		timeout:    orDefault(cfg.Timeout, DefaultTimeout),
	}
}

func (p *LocalProvider) Name() string    { return "local:" + p.model }
func (p *LocalProvider) Dimensions() int { return p.dimensions }

// Init checks that the model is available on the server. After the first
// success further calls return nil without contacting the server.
func (p *LocalProvider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.PostJSON(ctx, "/api/show", showRequest{Model: p.model}, nil); err != nil {
		return fmt.Errorf("%w: %s: load model: %w", ErrProviderUnavailable, p.Name(), err)
	}
	p.ready = true
	return nil
}

func (p *LocalProvider) initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if !p.initialized() {
		return nil, fmt.Errorf("%w: %s: not initialized", ErrProviderUnavailable, p.Name())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var resp localEmbedResponse
	if err := p.client.PostJSON(ctx, "/api/embeddings", localEmbedRequest{Model: p.model, Prompt: text}, &resp); err != nil {
		return nil, callError(p.Name(), p.timeout, err)
	}

	return finish(p.Name(), resp.Embedding, p.dimensions)
}
