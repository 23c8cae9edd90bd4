package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Retrieval Engine</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #111827; color: #e5e7eb; display: flex; justify-content: center; padding-top: 10vh; }
  .card { max-width: 560px; width: 90%; background: #1f2937; border-radius: 10px; padding: 2rem; }
  h1 { margin: 0 0 0.5rem; }
  .muted { color: #9ca3af; }
  code, a { color: #93c5fd; }
  li { margin: 0.3rem 0; }
</style>
</head>
<body>
<div class="card">
  <h1>Retrieval Engine</h1>
  <p class="muted">Document retrieval over MCP. Provider <code>{{.Provider}}</code>, store <code>{{.Store}}</code>.</p>
  <ul>
    <li><a href="/mcp">/mcp</a> MCP Streamable HTTP</li>
    <li><a href="/health">/health</a> health check</li>
  </ul>
  <p class="muted">Tools: <code>search_chunks</code>, <code>ingest_document</code>, <code>list_documents</code>, <code>get_index_status</code>.</p>
</div>
</body>
</html>`))

// LandingInfo is rendered on the landing page.
type LandingInfo struct {
	Provider string
	Store    string
}

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler(info LandingInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		landingTemplate.Execute(w, info)
	}
}
