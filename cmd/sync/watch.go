package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/bull/retrieval-engine/internal/loader"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Index a directory and re-index it on changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := args[0]
	debounce, _ := cmd.Flags().GetDuration("debounce")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}

	src := loader.NewDirSource(root)
	sync := func() {
		result, err := a.pipeline.IndexAll(ctx, src)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "sync error: %v\n", err)
			return
		}
		printResult(cmd, result)
	}

	sync()
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes...\n", root)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !hidden(event.Name) {
					if err := addWatchDirs(watcher, event.Name); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
					}
				}
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			if !pending {
				timer.Reset(debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-timer.C:
			pending = false
			sync()
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && hidden(path) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// shouldIgnoreEvent drops events that cannot change the index: chmod only,
// hidden files and files no loader reads.
func shouldIgnoreEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	if hidden(event.Name) {
		return true
	}
	// Removed or renamed directories have no extension but still drop documents.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Ext(event.Name) == "" {
		return false
	}
	return !loader.Supported(event.Name)
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
