package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bull/retrieval-engine/internal/vectorstore"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// Pinger is implemented by repositories with a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// Stores without a remote dependency and a nil db are reported as "n/a".
func NewHealthHandler(store vectorstore.Store, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Store:     "n/a",
			Database:  "n/a",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		healthy := true

		if checker, ok := store.(vectorstore.HealthChecker); ok {
			response.Store = "connected"
			if err := checker.Health(ctx); err != nil {
				response.Store = "disconnected"
				healthy = false
			}
		}
		if db != nil {
			response.Database = "connected"
			if err := db.Ping(ctx); err != nil {
				response.Database = "disconnected"
				healthy = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			response.Status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(response)
	}
}
