// Package mrkdwn converts CommonMark (as produced by the model) into Slack's
// mrkdwn dialect.
//
// Slack supports *bold*, _italic_, ~strike~, `code`, fenced code blocks,
// > quotes and <url|label> links. Headings and tables have no equivalent and
// are flattened; list markers are rendered as plain text.
package mrkdwn

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Converter renders markdown to mrkdwn. The zero value is not usable; call New.
type Converter struct {
	parser parser.Parser
}

// New returns a Converter with GitHub-flavoured strikethrough, tables and
// bare-URL linking enabled.
func New() *Converter {
	md := goldmark.New(goldmark.WithExtensions(
		extension.Strikethrough,
		extension.Linkify,
		extension.Table,
	))
	return &Converter{parser: md.Parser()}
}

var defaultConverter = New()

// Convert renders markdown with the default converter.
func Convert(markdown string) string {
	return defaultConverter.Convert(markdown)
}

// Convert renders markdown to mrkdwn.
func (c *Converter) Convert(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	source := []byte(markdown)
	doc := c.parser.Parse(text.NewReader(source))
	r := &renderer{source: source}
	return strings.TrimRight(r.blocks(doc, "\n\n"), "\n")
}

type renderer struct {
	source []byte
	bold   int // depth of enclosing bold spans
}

// blocks renders the block children of n joined by sep.
func (r *renderer) blocks(n ast.Node, sep string) string {
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if s := r.block(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (r *renderer) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return r.inlines(n)
	case *ast.Heading:
		r.bold++
		s := r.inlines(n)
		r.bold--
		if s == "" {
			return ""
		}
		return "*" + s + "*"
	case *ast.FencedCodeBlock:
		return r.codeBlock(n)
	case *ast.CodeBlock:
		return r.codeBlock(n)
	case *ast.Blockquote:
		return prefixLines(r.blocks(n, "\n"), "> ", "> ")
	case *ast.List:
		return r.list(n)
	case *ast.ThematicBreak:
		return "───"
	case *ast.HTMLBlock:
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.WriteString(escape(string(seg.Value(r.source))))
		}
		return strings.TrimRight(b.String(), "\n")
	case *east.Table:
		return r.table(n)
	default:
		if n.Type() == ast.TypeInline {
			return r.inline(n)
		}
		return r.blocks(n, "\n")
	}
}

func (r *renderer) codeBlock(n ast.Node) string {
	var b strings.Builder
	b.WriteString("```\n")
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.WriteString(escape(string(seg.Value(r.source))))
	}
	s := b.String()
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + "```"
}

func (r *renderer) list(l *ast.List) string {
	var items []string
	i := 0
	for c := l.FirstChild(); c != nil; c = c.NextSibling() {
		marker := "• "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", l.Start+i)
		}
		i++
		items = append(items, prefixLines(r.blocks(c, "\n"), marker, "    "))
	}
	return strings.Join(items, "\n")
}

func (r *renderer) table(t *east.Table) string {
	var rows []string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*east.TableHeader)
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			if header {
				r.bold++
			}
			s := r.inlines(cell)
			if header {
				r.bold--
				if s != "" {
					s = "*" + s + "*"
				}
			}
			cells = append(cells, s)
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}

func (r *renderer) inlines(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		b.WriteString(r.inline(c))
	}
	return b.String()
}

func (r *renderer) inline(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Text:
		s := escape(string(util.UnescapePunctuations(n.Segment.Value(r.source))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			s += "\n"
		}
		return s
	case *ast.String:
		return escape(string(n.Value))
	case *ast.Emphasis:
		if n.Level >= 2 {
			if r.bold > 0 {
				return r.inlines(n)
			}
			r.bold++
			s := r.inlines(n)
			r.bold--
			return wrap(s, "*")
		}
		return wrap(r.inlines(n), "_")
	case *east.Strikethrough:
		return wrap(r.inlines(n), "~")
	case *ast.CodeSpan:
		var b strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(r.source))
			} else if s, ok := c.(*ast.String); ok {
				b.Write(s.Value)
			}
		}
		return "`" + escape(b.String()) + "`"
	case *ast.Link:
		return link(string(n.Destination), r.inlines(n))
	case *ast.Image:
		return link(string(n.Destination), r.inlines(n))
	case *ast.AutoLink:
		return link(string(n.URL(r.source)), escape(string(n.Label(r.source))))
	case *ast.RawHTML:
		var b bytes.Buffer
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(r.source))
		}
		return escape(b.String())
	default:
		return r.inlines(n)
	}
}

func link(dest, label string) string {
	if dest == "" {
		return label
	}
	if label == "" || label == escape(dest) {
		return "<" + dest + ">"
	}
	return "<" + dest + "|" + label + ">"
}

func wrap(s, marker string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	return marker + s + marker
}

// prefixLines prefixes the first line with first and every later line
// with rest.
func prefixLines(s, first, rest string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = first + line
		} else if line != "" {
			lines[i] = rest + line
		}
	}
	return strings.Join(lines, "\n")
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return escaper.Replace(s)
}
