package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"

	"github.com/google/go-github/v81/github"

	"github.com/bull/retrieval-engine/internal/loader"
	"github.com/bull/retrieval-engine/internal/storage"
)

// Metadata keys set on fetched documents.
const (
	MetaURL = "url"
	MetaSHA = "sha"
)

// ErrNoContent is returned when GitHub answers a file request without content.
var ErrNoContent = errors.New("no file content returned")

// Fetcher lists and fetches loadable documents below a repository path.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	ref      string
}

// NewFetcher creates a document fetcher. An empty ref reads the default branch.
func NewFetcher(client *Client, owner, repo, basePath, ref string) *Fetcher {
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: path.Clean("/" + basePath)[1:],
		ref:      ref,
	}
}

func (f *Fetcher) Name() string {
	return fmt.Sprintf("github:%s/%s/%s", f.owner, f.repo, f.basePath)
}

// List recursively lists every loadable file below the base path, relative to it.
func (f *Fetcher) List(ctx context.Context) ([]string, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", fullPath, err)
	}

	var docs []string
	for _, item := range dirContents {
		name := item.GetName()
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if loader.Supported(name) {
				docs = append(docs, itemRelPath)
			}
		case "dir":
			subDocs, err := f.listRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}
	return docs, nil
}

// Fetch downloads and parses one file. The document ID is
// "github:owner/repo/full/path".
func (f *Fetcher) Fetch(ctx context.Context, relativePath string) (*storage.Document, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("get content of %s: %w", fullPath, err)
	}
	if fileContent == nil || fileContent.Content == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", fullPath, err)
	}

	doc, err := loader.Parse(fmt.Sprintf("github:%s/%s/%s", f.owner, f.repo, fullPath), content)
	if err != nil {
		return nil, err
	}
	doc.Metadata[loader.MetaPath] = fullPath
	doc.Metadata[MetaSHA] = fileContent.GetSHA()
	doc.Metadata[MetaURL] = f.rawURL(fullPath)
	return doc, nil
}

// LatestCommitSHA returns the SHA of the most recent commit touching the base path.
func (f *Fetcher) LatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.owner, f.repo, &github.CommitsListOptions{
		SHA:         f.ref,
		Path:        f.basePath,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("get latest commit: %w", err)
	}
	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}
	return commits[0].GetSHA(), nil
}

func (f *Fetcher) options() *github.RepositoryContentGetOptions {
	if f.ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.ref}
}

func (f *Fetcher) rawURL(fullPath string) string {
	ref := f.ref
	if ref == "" {
		ref = "HEAD"
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", f.owner, f.repo, ref, fullPath)
}
