package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/retrieval-engine/internal/retrieval"
	"github.com/bull/retrieval-engine/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Engine     *retrieval.Engine
	Pipeline   *retrieval.Pipeline
	Repository storage.Repository
	Version    string
	// AllowFileIngest lets ingest_document read paths on the server's filesystem.
	AllowFileIngest bool
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Engine == nil || cfg.Pipeline == nil || cfg.Repository == nil {
		return nil, errors.New("mcp: engine, pipeline and repository are required")
	}

	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "retrieval-engine",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_chunks",
		Description: "Find the indexed chunks most similar to a query. Returns ranked chunks and an attributed context block ready to quote.",
	}, makeSearchHandler(cfg.Engine, cfg.Repository))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Chunk, embed and index a document given inline or as a file path. Unchanged documents are skipped.",
	}, makeIngestHandler(cfg.Pipeline, cfg.AllowFileIngest))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every indexed document with its title and metadata.",
	}, makeListHandler(cfg.Repository))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Report document and chunk counts, the active embedding provider and the vector store.",
	}, makeStatusHandler(cfg.Engine, cfg.Repository))

	return &Server{server: server}, nil
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
