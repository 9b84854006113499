package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type SimpleNormalizer struct{}

func NewSimpleNormalizer() *SimpleNormalizer {
	return &SimpleNormalizer{}
}

// Normalize flattens an HTML fragment into whitespace-collapsed text.
// Block-level elements are separated so words from adjacent paragraphs
// do not run together.
func (n *SimpleNormalizer) Normalize(htmlContent string) (string, error) {
	if !strings.Contains(htmlContent, "<") {
		return collapse(html.UnescapeString(htmlContent)), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	for _, node := range doc.Nodes {
		writeText(&b, node)
	}
	return collapse(b.String()), nil
}

func writeText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	block := n.Type == html.ElementNode && isBlock(n.DataAtom)
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.Br, atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Tr, atom.Td, atom.Th, atom.Section, atom.Article:
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanDescription normalizes and falls back to the raw text if parsing fails.
func cleanDescription(n Normalizer, raw string) string {
	if n == nil || raw == "" {
		return strings.TrimSpace(raw)
	}
	if out, err := n.Normalize(raw); err == nil {
		return out
	}
	return strings.TrimSpace(raw)
}
