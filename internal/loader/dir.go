package loader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bull/retrieval-engine/internal/storage"
)

// DirSource lists every supported file under a directory tree.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: filepath.Clean(root)}
}

func (s *DirSource) Name() string { return "dir:" + filepath.ToSlash(s.root) }

// List returns supported files relative to the root, sorted. Hidden
// directories and files are skipped.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	var refs []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Supported(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		refs = append(refs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	sort.Strings(refs)
	return refs, nil
}

// Fetch loads ref, a path relative to the root.
func (s *DirSource) Fetch(_ context.Context, ref string) (*storage.Document, error) {
	return LoadFile(filepath.Join(s.root, filepath.FromSlash(ref)))
}
