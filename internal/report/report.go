package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/CageChen/astrohub/internal/astrofile"
)

// carder is implemented by handles that can list their raw header records.
type carder interface {
	Cards() []astrofile.Card
}

// Summary describes what a report covers.
type Summary struct {
	Title      string
	Pattern    string
	SortFields []string
	Fields     []string
	Handles    []astrofile.Handle
}

// Markdown renders s as a markdown document: a table of the requested header
// fields followed by a header dump per file.
func Markdown(s Summary) []byte {
	var b bytes.Buffer

	title := s.Title
	if title == "" {
		title = "Collection"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%d file(s) matching `%s`", len(s.Handles), s.Pattern)
	if len(s.SortFields) > 0 {
		fmt.Fprintf(&b, ", sorted by %s", strings.Join(s.SortFields, ", "))
	}
	b.WriteString(".\n\n")

	if len(s.Handles) == 0 {
		return b.Bytes()
	}

	b.WriteString("## Files\n\n| # | File |")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, " %s |", cell(f))
	}
	b.WriteString("\n|---|---|")
	b.WriteString(strings.Repeat("---|", len(s.Fields)))
	b.WriteString("\n")
	for i, h := range s.Handles {
		fmt.Fprintf(&b, "| %d | %s |", i, cell(h.Basename()))
		for _, v := range h.Header(s.Fields...) {
			fmt.Fprintf(&b, " %s |", cell(astrofile.FormatValue(v)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Headers\n")
	for _, h := range s.Handles {
		c, ok := h.(carder)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n```ini\n", h.Basename())
		for _, card := range c.Cards() {
			if card.Value == nil {
				fmt.Fprintf(&b, "%-8s %s\n", card.Key, card.Comment)
				continue
			}
			fmt.Fprintf(&b, "%-8s = %s", card.Key, astrofile.FormatValue(card.Value))
			if card.Comment != "" {
				fmt.Fprintf(&b, " ; %s", card.Comment)
			}
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.Bytes()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Page wraps a rendered report in a standalone HTML document.
func Page(r *ParseResult) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(r.Title))
	b.WriteString("</head><body><nav><ul>")
	for _, item := range r.TOC {
		if item.Level > 2 {
			continue
		}
		fmt.Fprintf(&b, "<li><a href=\"#%s\">%s</a></li>", item.Anchor, html.EscapeString(item.Title))
	}
	b.WriteString("</ul></nav><main>")
	b.WriteString(r.HTML)
	b.WriteString("</main></body></html>\n")
	return b.String()
}
