package docs

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Request is one entry of a documents.batchUpdate call.
type Request struct {
	InsertText           *InsertTextRequest           `json:"insertText,omitempty"`
	UpdateParagraphStyle *UpdateParagraphStyleRequest `json:"updateParagraphStyle,omitempty"`
}

type Location struct {
	Index int `json:"index"`
}

type Range struct {
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

type InsertTextRequest struct {
	Location Location `json:"location"`
	Text     string   `json:"text"`
}

type ParagraphStyle struct {
	NamedStyleType string `json:"namedStyleType"`
}

type UpdateParagraphStyleRequest struct {
	Range          Range          `json:"range"`
	ParagraphStyle ParagraphStyle `json:"paragraphStyle"`
	Fields         string         `json:"fields"`
}

var (
	markdown   = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// converter appends insert requests at a running index. A new document body
// starts at index 1 and indexes count UTF-16 code units.
type converter struct {
	src      []byte
	index    int
	requests []Request
}

// Convert turns Markdown into the batchUpdate requests that write it into an
// empty document. Headings get HEADING_n styles; everything else is plain text.
func Convert(md string) []Request {
	c := &converter{src: []byte(md), index: 1}
	doc := markdown.Parser().Parse(text.NewReader(c.src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		c.block(n)
	}
	return c.requests
}

func (c *converter) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		c.heading(c.inline(n), n.Level)
	case *ast.Paragraph, *ast.TextBlock:
		c.paragraph(c.inline(n))
	case *ast.List:
		c.list(n, 0)
	case *ast.FencedCodeBlock:
		c.insert("```\n" + c.lines(n) + "\n```\n")
	case *ast.CodeBlock:
		c.insert("```\n" + c.lines(n) + "\n```\n")
	case *ast.Blockquote:
		if s := c.inline(n); s != "" {
			c.insert("> " + s + "\n")
		}
	case *ast.ThematicBreak:
		c.insert("---\n")
	case *ast.HTMLBlock:
		c.paragraph(clean(c.lines(n)))
	case *east.Table:
		c.table(n)
	default:
		c.paragraph(c.inline(n))
	}
}

func (c *converter) heading(s string, level int) {
	if s == "" {
		return
	}
	if level < 1 || level > 6 {
		level = 1
	}
	start := c.index
	c.insert(s + "\n")
	c.requests = append(c.requests, Request{
		UpdateParagraphStyle: &UpdateParagraphStyleRequest{
			Range:          Range{StartIndex: start, EndIndex: start + utf16Len(s)},
			ParagraphStyle: ParagraphStyle{NamedStyleType: fmt.Sprintf("HEADING_%d", level)},
			Fields:         "namedStyleType",
		},
	})
}

func (c *converter) paragraph(s string) {
	if s != "" {
		c.insert(s + "\n")
	}
}

func (c *converter) list(l *ast.List, depth int) {
	indent := strings.Repeat("  ", depth)
	number := l.Start
	if number == 0 {
		number = 1
	}

	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		prefix := "• "
		if l.IsOrdered() {
			prefix = fmt.Sprintf("%d. ", number)
			number++
		}

		var parts []string
		var nested []*ast.List
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if sub, ok := child.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if s := c.inline(child); s != "" {
				parts = append(parts, s)
			}
		}

		c.insert(indent + prefix + strings.Join(parts, " ") + "\n")
		for _, sub := range nested {
			c.list(sub, depth+1)
		}
	}
}

// table flattens rows into tab-separated lines, header first.
func (c *converter) table(t *east.Table) {
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, c.inline(cell))
		}
		c.insert(strings.Join(cells, "\t") + "\n")
	}
}

func (c *converter) insert(s string) {
	c.requests = append(c.requests, Request{
		InsertText: &InsertTextRequest{Location: Location{Index: c.index}, Text: s},
	})
	c.index += utf16Len(s)
}

// inline returns the cleaned plain text of n and its descendants.
func (c *converter) inline(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := node.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(c.src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.Label(c.src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			if node != n {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return clean(sb.String())
}

func (c *converter) lines(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(c.src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func clean(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
