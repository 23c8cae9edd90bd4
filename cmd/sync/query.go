package main

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/bull/retrieval-engine/internal/retrieval"
	"github.com/bull/retrieval-engine/internal/storage"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Show the chunks most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents grouped by source",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document and vector from the index",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	queryCmd.Flags().IntP("top-k", "k", 0, "number of chunks to return (default: RAG_TOP_K)")
	queryCmd.Flags().Bool("context", false, "print the assembled context instead of a result table")
	listCmd.Flags().Bool("chunks", false, "show chunk previews under each document")
	clearCmd.Flags().Bool("yes", false, "confirm clearing the index")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	k, _ := cmd.Flags().GetInt("top-k")
	if k <= 0 {
		k = a.cfg.Retrieval.TopK
	}
	text := strings.Join(args, " ")

	contextText, ranked, err := a.engine.Context(ctx, text, k)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ranked) == 0 {
		fmt.Fprintln(out, "No matching chunks found.")
		return nil
	}
	if asContext, _ := cmd.Flags().GetBool("context"); asContext {
		fmt.Fprintln(out, contextText)
		return nil
	}

	for i, rc := range ranked {
		fmt.Fprintf(out, "%d. %.4f  %s #%d\n", i+1, rc.Score, rc.Chunk.DocumentID, rc.Chunk.Index)
		fmt.Fprintf(out, "   %s\n", preview(rc.Chunk.Content, 120))
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.repo.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Index is empty.")
		return nil
	}

	withChunks, _ := cmd.Flags().GetBool("chunks")
	chunks := make(map[string][]storage.Chunk, len(docs))
	for _, doc := range docs {
		c, err := a.repo.Chunks(ctx, doc.ID)
		if err != nil {
			return err
		}
		chunks[doc.ID] = c
	}

	fmt.Fprint(cmd.OutOrStdout(), buildDocumentTree(a.repo.Path(), docs, chunks, withChunks))
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("refusing to clear the index without --yes")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.pipeline.ClearAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d document(s) from %s\n", n, a.engine.Store().Name())
	return nil
}

// buildDocumentTree renders documents grouped by source.
func buildDocumentTree(rootName string, docs []storage.Document, chunks map[string][]storage.Chunk, withChunks bool) string {
	tree := treeprint.New()
	tree.SetValue(rootName)

	bySource := make(map[string][]storage.Document)
	for _, doc := range docs {
		source := doc.Metadata[retrieval.MetaSource]
		if source == "" {
			source = "(no source)"
		}
		bySource[source] = append(bySource[source], doc)
	}

	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		branch := tree.AddBranch(source)
		for _, doc := range bySource[source] {
			docChunks := chunks[doc.ID]
			label := fmt.Sprintf("%s [%s] (%d chunks)", doc.Title, doc.ID, len(docChunks))
			if !withChunks {
				branch.AddNode(label)
				continue
			}
			docBranch := branch.AddBranch(label)
			for _, c := range docChunks {
				docBranch.AddNode(fmt.Sprintf("#%d %s", c.Index, preview(c.Content, 60)))
			}
		}
	}
	return tree.String()
}

// preview flattens whitespace and truncates s to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
