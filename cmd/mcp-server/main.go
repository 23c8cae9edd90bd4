// Package main provides the MCP server entry point for the retrieval engine.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/retrieval-engine/internal/config"
	mcpserver "github.com/bull/retrieval-engine/internal/mcp"
	"github.com/bull/retrieval-engine/internal/retrieval"
	"github.com/bull/retrieval-engine/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(os.Getenv("RAG_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Stdout carries the stdio transport, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	repo, err := storage.NewSQLiteRepository(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer repo.Close()

	engine, err := retrieval.Build(ctx, cfg, repo, logger)
	if err != nil {
		log.Fatalf("failed to build retrieval engine: %v", err)
	}
	defer engine.Close()

	server, err := mcpserver.NewServer(&mcpserver.Config{
		Engine:     engine,
		Pipeline:   retrieval.NewPipeline(engine, repo, logger),
		Repository: repo,
		// Only a local stdio client may point the server at files.
		AllowFileIngest: !cfg.Server.ServerMode,
	})
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(engine.Store(), repo))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, false))
	mux.HandleFunc("/", mcpserver.NewLandingHandler(mcpserver.LandingInfo{
		Provider: engine.Embeddings().ProviderName(),
		Store:    engine.Store().Name(),
	}))

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.ServerMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode: the HTTP listener only serves /health for local testing
	go func() {
		log.Printf("Starting health server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Health server error: %v", err)
		}
	}()

	log.Println("Starting retrieval MCP server (stdio mode)...")
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
