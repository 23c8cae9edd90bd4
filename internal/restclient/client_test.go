package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("Api-Key"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer ts.Close()

	c := NewRestClient(ts.URL+"/", map[string]string{"Api-Key": "secret"}, time.Second)

	var out struct {
		Echo string `json:"echo"`
	}
	err := c.PostJSON(context.Background(), "/echo", map[string]string{"msg": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)
}

func TestPostJSON_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("e", 2000), http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := NewRestClient(ts.URL, nil, time.Second)
	err := c.PostJSON(context.Background(), "/", struct{}{}, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.LessOrEqual(t, len(statusErr.Body), maxErrorBody+3)
}

func TestPostJSON_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer ts.Close()

	c := NewRestClient(ts.URL, nil, time.Second)
	var out map[string]any
	err := c.PostJSON(context.Background(), "/", struct{}{}, &out)
	assert.ErrorContains(t, err, "decode response")
}

func TestGet_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewRestClient(ts.URL, nil, 0)
	_, _, err := c.Get(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}
