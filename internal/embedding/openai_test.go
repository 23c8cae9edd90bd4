package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIResponse(embedding []float64) map[string]any {
	return map[string]any{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": embedding},
		},
		"usage": map[string]any{"prompt_tokens": 1, "total_tokens": 1},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func newOpenAITestProvider(t *testing.T, url string, dims int) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    url + "/",
		Dimensions: dims,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return p
}

func TestOpenAIProvider_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["input"])
		assert.Equal(t, DefaultOpenAIModel, body["model"])
		assert.EqualValues(t, 3, body["dimensions"])

		writeJSON(w, http.StatusOK, openAIResponse([]float64{3, 4, 0}))
	}))
	defer ts.Close()

	p := newOpenAITestProvider(t, ts.URL, 3)
	v, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, v, 3)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, "openai:text-embedding-3-small", p.Name())
}

func TestOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestOpenAIProvider_InvalidKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]any{
				"message": "Incorrect API key provided",
				"type":    "invalid_request_error",
				"code":    "invalid_api_key",
			},
		})
	}))
	defer ts.Close()

	p := newOpenAITestProvider(t, ts.URL, 384)
	_, err := p.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestOpenAIProvider_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"message": "slow down", "type": "rate_limit"},
			})
			return
		}
		writeJSON(w, http.StatusOK, openAIResponse([]float64{1, 0}))
	}))
	defer ts.Close()

	p := newOpenAITestProvider(t, ts.URL, 2)
	v, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIProvider_WrongDimensions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, openAIResponse([]float64{1, 0}))
	}))
	defer ts.Close()

	p := newOpenAITestProvider(t, ts.URL, 3)
	_, err := p.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    ts.URL + "/",
		Dimensions: 2,
		Timeout:    50 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Embed(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrProvider))
	assert.Less(t, time.Since(start), time.Second)
}
