package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewHTTPHandler serves the MCP server over Streamable HTTP. Stateless
// drops session tracking, which suits servers that never call the client.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, true))
func NewHTTPHandler(server *Server, stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
