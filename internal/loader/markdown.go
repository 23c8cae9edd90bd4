package loader

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is the text under one H1 or H2 heading, with its heading path.
type Section struct {
	Index      int
	HeaderPath string // "# Doc Title > ## Section Name"
	Body       string
}

// Text renders the section with its heading path on top.
func (s Section) Text() string {
	switch {
	case s.HeaderPath == "":
		return s.Body
	case s.Body == "":
		return s.HeaderPath
	default:
		return s.HeaderPath + "\n\n" + s.Body
	}
}

var markdownParser = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// Sections splits markdown at H1 and H2 boundaries. Text before the first
// heading becomes a section with no heading path.
func Sections(source []byte) ([]Section, error) {
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	headings := boundaryHeadings(doc)
	if len(tree.Items) == 0 || len(headings) == 0 {
		body := strings.TrimSpace(string(source))
		if body == "" {
			return nil, nil
		}
		return []Section{{Body: body}}, nil
	}

	var sections []Section
	if preamble := strings.TrimSpace(string(source[:lineStart(source, headings[0])])); preamble != "" {
		sections = append(sections, Section{Body: preamble})
	}
	collectSections(doc, source, tree.Items, nil, headings, &sections)
	return sections, nil
}

// collectSections walks TOC items depth first, cutting each section at the
// next H1 or H2 in the document.
func collectSections(doc ast.Node, source []byte, items toc.Items, ancestors []string, headings []*ast.Heading, sections *[]Section) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))

		heading := findHeading(doc, string(item.ID))
		if heading != nil {
			start := lineEnd(source, heading)
			end := len(source)
			if next := nextBoundary(headings, heading); next != nil {
				end = lineStart(source, next)
			}
			body := ""
			if start < end {
				body = strings.TrimSpace(string(source[start:end]))
			}
			*sections = append(*sections, Section{
				Index:      len(*sections),
				HeaderPath: formatHeaderPath(path),
				Body:       body,
			})
		}

		if len(item.Items) > 0 {
			collectSections(doc, source, item.Items, path, headings, sections)
		}
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + segment
	}
	return strings.Join(parts, " > ")
}

// boundaryHeadings returns the H1 and H2 nodes with text, in document order.
func boundaryHeadings(doc ast.Node) []*ast.Heading {
	var out []*ast.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering && h.Level <= 2 && h.Lines().Len() > 0 {
			out = append(out, h)
		}
		return ast.WalkContinue, nil
	})
	return out
}

func findHeading(doc ast.Node, id string) *ast.Heading {
	var found *ast.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		if v, ok := h.AttributeString("id"); ok {
			if b, ok := v.([]byte); ok && string(b) == id {
				found = h
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

func nextBoundary(headings []*ast.Heading, current *ast.Heading) *ast.Heading {
	for i, h := range headings {
		if h == current && i+1 < len(headings) {
			return headings[i+1]
		}
	}
	return nil
}

// lineStart returns the offset of the start of the line holding h's text.
func lineStart(source []byte, h *ast.Heading) int {
	seg := h.Lines().At(0)
	return strings.LastIndexByte(string(source[:seg.Start]), '\n') + 1
}

// lineEnd returns the offset just past the line holding h's text.
func lineEnd(source []byte, h *ast.Heading) int {
	seg := h.Lines().At(0)
	if i := strings.IndexByte(string(source[seg.Stop:]), '\n'); i >= 0 {
		return seg.Stop + i + 1
	}
	return len(source)
}

// parseMarkdown returns the first heading as title and the sections joined
// as plain text.
func parseMarkdown(source []byte) (title, content string, err error) {
	sections, err := Sections(source)
	if err != nil {
		return "", "", err
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if title == "" && s.HeaderPath != "" {
			title = strings.TrimPrefix(strings.SplitN(s.HeaderPath, " > ", 2)[0], "# ")
		}
		parts = append(parts, s.Text())
	}
	return title, strings.Join(parts, "\n\n"), nil
}
