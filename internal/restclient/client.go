// Package restclient is a small JSON-over-HTTP client shared by the vendor
// adapters that have no Go SDK (Cohere, the local model server, Pinecone).
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response body is kept in StatusError.
const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// RestClient issues JSON requests against a base URL with fixed headers.
type RestClient struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

// NewRestClient creates a client. A zero timeout leaves deadlines to the caller's context.
func NewRestClient(baseURL string, headers map[string]string, timeout time.Duration) *RestClient {
	return &RestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    headers,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the base URL requests are resolved against.
func (c *RestClient) BaseURL() string {
	return c.baseURL
}

// Get issues a GET and returns the raw body and status code.
func (c *RestClient) Get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req)
}

// Post marshals body as JSON, issues a POST and returns the raw body and status code.
func (c *RestClient) Post(ctx context.Context, endpoint string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req)
}

// PostJSON posts in and decodes a 2xx response into out (which may be nil).
// Non-2xx responses are returned as *StatusError.
func (c *RestClient) PostJSON(ctx context.Context, endpoint string, in, out any) error {
	body, status, err := c.Post(ctx, endpoint, in)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return &StatusError{StatusCode: status, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *RestClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

func (c *RestClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
