// Package draft handles the document under construction: its heading
// outline, HTML rendering and on-disk checkpoints.
package draft

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Section is a heading and the headings nested beneath it.
type Section struct {
	Level    int
	Title    string
	Children []*Section
}

// Outline returns the heading tree of a markdown document.
func Outline(markdown string) []*Section {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	type stackEntry struct {
		node  *Section
		level int
	}
	// Root is level 0; all h1+ nest under it.
	root := &Section{}
	stack := []stackEntry{{node: root, level: 0}}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		sec := &Section{Level: heading.Level, Title: headingText(heading, src)}

		// Pop until the top is a shallower heading.
		for len(stack) > 1 && stack[len(stack)-1].level >= heading.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, sec)
		stack = append(stack, stackEntry{node: sec, level: heading.Level})
	}
	return root.Children
}

// FormatOutline renders sections as an indented list of markdown headings.
func FormatOutline(sections []*Section) string {
	var b strings.Builder
	var walk func([]*Section, int)
	walk = func(secs []*Section, depth int) {
		for _, s := range secs {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(strings.Repeat("#", s.Level))
			b.WriteByte(' ')
			b.WriteString(s.Title)
			b.WriteByte('\n')
			walk(s.Children, depth+1)
		}
	}
	walk(sections, 0)
	return b.String()
}

func headingText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			continue
		}
		buf.WriteString(headingText(c, src))
	}
	return strings.TrimSpace(buf.String())
}

// RenderHTML converts a markdown draft to HTML with GitHub-flavored
// extensions.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
