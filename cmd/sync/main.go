// Package main provides the sync CLI: ingest files and GitHub trees, watch
// a directory, and query the index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/retrieval-engine/internal/config"
	"github.com/bull/retrieval-engine/internal/retrieval"
	"github.com/bull/retrieval-engine/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rag-sync",
	Short: "Document retrieval indexing tool",
	Long: `CLI tool for ingesting documents into the retrieval index and querying it.

Documents and chunk vectors are kept in a SQLite database (RAG_DB_PATH);
vectors are also written to the configured store (RAG_STORE).

Environment variables:
  RAG_PROVIDER     openai, cohere, local or hash (default: hash)
  RAG_STORE        local, pinecone or qdrant (default: local)
  RAG_DB_PATH      SQLite database path (default: data/rag.db)
  OPENAI_API_KEY   OpenAI API key (openai provider)
  COHERE_API_KEY   Cohere API key (cohere provider)
  LOCAL_MODEL_URL  Local model server URL (local provider)
  GITHUB_TOKEN     GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file (optional)")
	rootCmd.AddCommand(ingestCmd, githubCmd, watchCmd, queryCmd, listCmd, clearCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the components every command works with.
type app struct {
	cfg      *config.Config
	repo     *storage.SQLiteRepository
	engine   *retrieval.Engine
	pipeline *retrieval.Pipeline
	logger   *slog.Logger
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	repo, err := storage.NewSQLiteRepository(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	engine, err := retrieval.Build(ctx, cfg, repo, logger)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		repo:     repo,
		engine:   engine,
		pipeline: retrieval.NewPipeline(engine, repo, logger),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.engine.Close(); err != nil {
		a.logger.Warn("Failed to close store", "error", err)
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("Failed to close database", "error", err)
	}
}

// printResult writes an indexing summary.
func printResult(cmd *cobra.Command, result *retrieval.IndexResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sync complete!")
	fmt.Fprintf(out, "  Documents: %d/%d (%d unchanged)\n", result.SuccessfulDocs, result.TotalDocs, result.UnchangedDocs)
	fmt.Fprintf(out, "  Chunks: %d\n", result.TotalChunks)
	if result.RemovedDocs > 0 {
		fmt.Fprintf(out, "  Removed: %d\n", result.RemovedDocs)
	}
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Ref, failed.Reason)
		}
	}
}
