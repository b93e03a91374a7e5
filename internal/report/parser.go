// Package report renders collection summaries as HTML through goldmark, with
// header dumps highlighted by chroma.
package report

import (
	"bytes"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// TOCItem represents a table of contents entry
type TOCItem struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

// ParseResult contains the rendered document
type ParseResult struct {
	HTML  string    `json:"html"`
	TOC   []TOCItem `json:"toc"`
	Title string    `json:"title"`
}

// Parser handles markdown parsing with goldmark
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a new markdown parser with extensions
func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &Parser{md: md}
}

// Parse converts markdown source to HTML and extracts metadata
func (p *Parser) Parse(source []byte) (*ParseResult, error) {
	doc := p.md.Parser().Parse(text.NewReader(source), parser.WithContext(parser.NewContext()))

	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, err
	}

	toc := extractTOC(doc, source)
	var title string
	if len(toc) > 0 {
		title = toc[0].Title
	}

	return &ParseResult{
		HTML:  buf.String(),
		TOC:   toc,
		Title: title,
	}, nil
}

// extractTOC walks the AST to extract headings. Anchors are the ids the
// parser assigned, so they always match the rendered document.
func extractTOC(doc ast.Node, source []byte) []TOCItem {
	var toc []TOCItem
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if heading, ok := n.(*ast.Heading); ok {
			var anchor string
			if id, ok := heading.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					anchor = string(b)
				}
			}
			toc = append(toc, TOCItem{
				Level:  heading.Level,
				Title:  extractText(heading, source),
				Anchor: anchor,
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil
	}

	return toc
}

// extractText extracts text content from a node
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if text, ok := child.(*ast.Text); ok {
			buf.Write(text.Segment.Value(source))
		}
	}
	return buf.String()
}
