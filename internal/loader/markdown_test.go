package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerPaths(sections []Section) []string {
	paths := make([]string, len(sections))
	for i, s := range sections {
		paths[i] = s.HeaderPath
	}
	return paths
}

func TestSections_BasicHeaders(t *testing.T) {
	input := `# Getting Started

Introduction text here.

## Installation

Install steps here.

## Configuration

Config details here.
`

	sections, err := Sections([]byte(input))
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, []string{
		"# Getting Started",
		"# Getting Started > ## Installation",
		"# Getting Started > ## Configuration",
	}, headerPaths(sections))
	assert.Equal(t, "Introduction text here.", sections[0].Body)
	assert.Equal(t, "Install steps here.", sections[1].Body)
	assert.Equal(t, "Config details here.", sections[2].Body)
	for i, s := range sections {
		assert.Equal(t, i, s.Index)
	}
}

func TestSections_NestedContentStaysInSection(t *testing.T) {
	input := "# API Reference\n\nOverview of the API.\n\n## Methods\n\nAvailable methods:\n\n" +
		"```go\nfunc Do() error\n```\n\n### Details\n\nDeep detail.\n"

	sections, err := Sections([]byte(input))
	require.NoError(t, err)
	require.Len(t, sections, 2)

	methods := sections[1]
	assert.Contains(t, methods.Body, "func Do() error")
	assert.Contains(t, methods.Body, "### Details")
	assert.Contains(t, methods.Body, "Deep detail.")
}

func TestSections_MultipleH1s(t *testing.T) {
	input := `# First Section

First content.

## First Subsection

First sub content.

# Second Section

Second content.

## Second Subsection

Second sub content.
`

	sections, err := Sections([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"# First Section",
		"# First Section > ## First Subsection",
		"# Second Section",
		"# Second Section > ## Second Subsection",
	}, headerPaths(sections))
	assert.Equal(t, "First content.", sections[0].Body)
	assert.Equal(t, "Second sub content.", sections[3].Body)
}

func TestSections_NoHeaders(t *testing.T) {
	sections, err := Sections([]byte("This is a document with no headers.\n\nJust text.\n"))
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Empty(t, sections[0].HeaderPath)
	assert.Equal(t, "This is a document with no headers.\n\nJust text.", sections[0].Text())
}

func TestSections_EmptyInput(t *testing.T) {
	sections, err := Sections([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestSections_PreambleAndEmptySection(t *testing.T) {
	input := `Before any heading.

# Title

## Empty Section

## Another Section

Has content.
`

	sections, err := Sections([]byte(input))
	require.NoError(t, err)
	require.Len(t, sections, 4)

	assert.Equal(t, "Before any heading.", sections[0].Text())
	assert.Equal(t, "# Title > ## Empty Section", sections[2].Text())
	assert.Equal(t, "# Title > ## Another Section\n\nHas content.", sections[3].Text())
}

func TestParseMarkdown_Title(t *testing.T) {
	title, content, err := parseMarkdown([]byte("# Birds\n\nBirds can fly.\n\n## Wings\n\nFeathers.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Birds", title)
	assert.Equal(t, "# Birds\n\nBirds can fly.\n\n# Birds > ## Wings\n\nFeathers.", content)
}
