package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	ghclient "github.com/bull/retrieval-engine/internal/github"
	"github.com/bull/retrieval-engine/internal/loader"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest files or directories",
	Long: `Chunks, embeds and indexes .txt, .md and .html files.

Directories are walked recursively; documents from a directory that no
longer exist on disk are removed from the index. Unchanged documents are
skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Ingest a documentation tree from a GitHub repository",
	RunE:  runGitHub,
}

func init() {
	githubCmd.Flags().String("owner", "", "repository owner (default: GITHUB_OWNER)")
	githubCmd.Flags().String("repo", "", "repository name (default: GITHUB_REPO)")
	githubCmd.Flags().String("path", "", "directory within the repository (default: GITHUB_PATH)")
	githubCmd.Flags().String("ref", "", "branch, tag or commit (default: repository default branch)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			fmt.Fprintf(out, "Indexing directory %s...\n", path)
			result, err := a.pipeline.IndexAll(ctx, loader.NewDirSource(path))
			if err != nil {
				return fmt.Errorf("indexing %s failed: %w", path, err)
			}
			printResult(cmd, result)
			failed += len(result.FailedDocs)
			continue
		}

		doc, err := loader.LoadFile(path)
		if err != nil {
			fmt.Fprintf(out, "  - %s: %v\n", path, err)
			failed++
			continue
		}
		chunks, unchanged, err := a.pipeline.IndexDocument(ctx, *doc)
		switch {
		case err != nil:
			fmt.Fprintf(out, "  - %s: %v\n", path, err)
			failed++
		case unchanged:
			fmt.Fprintf(out, "  %s unchanged (%d chunks)\n", doc.ID, chunks)
		default:
			fmt.Fprintf(out, "  %s: %d chunks\n", doc.ID, chunks)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) failed to index", failed)
	}
	return nil
}

func runGitHub(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	owner := flagOr(cmd, "owner", a.cfg.GitHub.Owner)
	repo := flagOr(cmd, "repo", a.cfg.GitHub.Repo)
	path := flagOr(cmd, "path", a.cfg.GitHub.Path)
	ref, _ := cmd.Flags().GetString("ref")
	if owner == "" || repo == "" {
		return fmt.Errorf("--owner and --repo (or GITHUB_OWNER and GITHUB_REPO) are required")
	}

	client, err := ghclient.NewClient(a.cfg.GitHub.Token)
	if err != nil {
		return fmt.Errorf("create GitHub client: %w", err)
	}
	fetcher := ghclient.NewFetcher(client, owner, repo, path, ref)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexing %s...\n", fetcher.Name())
	if sha, err := fetcher.LatestCommitSHA(ctx); err == nil {
		fmt.Fprintf(out, "  Commit: %s\n", sha)
	} else {
		a.logger.Warn("Could not resolve latest commit", "error", err)
	}

	result, err := a.pipeline.IndexAll(ctx, fetcher)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	printResult(cmd, result)
	return nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}
