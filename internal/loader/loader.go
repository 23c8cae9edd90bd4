// Package loader turns files into documents ready for ingestion.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bull/retrieval-engine/internal/storage"
)

// Supported formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Metadata keys set on loaded documents.
const (
	MetaPath   = "path"
	MetaFormat = "format"
)

var (
	// ErrUnsupportedFormat is returned for files whose extension has no parser.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNotUTF8 is returned for files that are not valid UTF-8 text.
	ErrNotUTF8 = errors.New("document is not valid UTF-8")
)

var extensions = map[string]string{
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
	".htm":      FormatHTML,
}

// FormatOf returns the format for name's extension, or "" if unsupported.
func FormatOf(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Supported reports whether name has a loadable extension.
func Supported(name string) bool {
	return FormatOf(name) != ""
}

// LoadFile reads path and parses it by extension. The document ID is the
// slash-separated cleaned path.
func LoadFile(path string) (*storage.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(filepath.ToSlash(filepath.Clean(path)), data)
}

// Parse builds a document with the given ID from data, choosing the parser
// from the ID's extension.
func Parse(id string, data []byte) (*storage.Document, error) {
	format := FormatOf(id)
	if format == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, id)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrNotUTF8, id)
	}

	var title, content string
	var err error
	switch format {
	case FormatMarkdown:
		title, content, err = parseMarkdown(data)
	case FormatHTML:
		title, content, err = parseHTML(data)
	default:
		content = strings.ReplaceAll(string(data), "\r\n", "\n")
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", id, err)
	}

	if title == "" {
		title = titleFromName(id)
	}

	return &storage.Document{
		ID:      id,
		Title:   title,
		Content: content,
		Metadata: map[string]string{
			MetaPath:   id,
			MetaFormat: format,
		},
	}, nil
}

// titleFromName turns "docs/getting-started.md" into "getting started".
func titleFromName(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Join(strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	}), " ")
}
