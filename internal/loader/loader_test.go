package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatText, FormatOf("notes/a.txt"))
	assert.Equal(t, FormatMarkdown, FormatOf("README.MD"))
	assert.Equal(t, FormatHTML, FormatOf("index.htm"))
	assert.Empty(t, FormatOf("image.png"))
	assert.False(t, Supported("Makefile"))
}

func TestParse_Text(t *testing.T) {
	doc, err := Parse("notes/getting-started.txt", []byte("line one\r\nline two\n"))
	require.NoError(t, err)
	assert.Equal(t, "notes/getting-started.txt", doc.ID)
	assert.Equal(t, "getting started", doc.Title)
	assert.Equal(t, "line one\nline two\n", doc.Content)
	assert.Equal(t, FormatText, doc.Metadata[MetaFormat])
	assert.Equal(t, "notes/getting-started.txt", doc.Metadata[MetaPath])
}

func TestParse_HTML(t *testing.T) {
	input := `<html><head><title> Flight
  Notes </title><style>p { color: red }</style></head>
<body><h1>Birds</h1><p>Birds   can fly.</p><script>var x = 1;</script><p>Cars drive.</p></body></html>`

	doc, err := Parse("site/flight.html", []byte(input))
	require.NoError(t, err)
	assert.Equal(t, "Flight Notes", doc.Title)
	assert.Equal(t, "Birds\nBirds can fly.\nCars drive.", doc.Content)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("image.png", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse("bad.txt", []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, ErrNotUTF8)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "birds.md")
	require.NoError(t, os.WriteFile(path, []byte("# Birds\n\nBirds can fly.\n"), 0o644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Birds", doc.Title)
	assert.Equal(t, filepath.ToSlash(path), doc.ID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"a.txt":           "alpha",
		"sub/b.md":        "# Beta\n\nbeta",
		"sub/c.html":      "<p>gamma</p>",
		"sub/ignored.png": "binary",
		".git/config.txt": "hidden dir",
		"sub/.draft.md":   "hidden file",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	src := NewDirSource(root)
	refs, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.md", "sub/c.html"}, refs)

	doc, err := src.Fetch(context.Background(), "sub/b.md")
	require.NoError(t, err)
	assert.Equal(t, "Beta", doc.Title)
	assert.Equal(t, filepath.ToSlash(filepath.Join(root, "sub", "b.md")), doc.ID)
}
