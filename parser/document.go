package parser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed snapshot of one rendered page. It is read-only and
// safe to share once built.
type Document struct {
	URL  string
	HTML string
	root *html.Node
}

// NewDocument parses rawHTML captured from pageURL.
func NewDocument(pageURL, rawHTML string) (*Document, error) {
	root, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return &Document{URL: pageURL, HTML: rawHTML, root: root}, nil
}

// Links returns the absolute target of every anchor with an href, in page
// order and without duplicates. Relative targets are resolved against the
// document URL.
func (d *Document) Links() []string {
	base, _ := url.Parse(d.URL)

	seen := make(map[string]struct{})
	var links []string
	goquery.NewDocumentFromNode(d.root).Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		if base != nil {
			if resolved, err := base.Parse(href); err == nil {
				href = resolved.String()
			}
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}

// Lookup answers whether the field locator matches anything and returns the
// trimmed value of every match: the named attribute when fs.Attribute is
// set (matches lacking it are skipped), otherwise the rendered text.
func (d *Document) Lookup(fs *FieldSpec) []string {
	nodes := d.nodes(fs)
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if fs.Attribute == "" {
			values = append(values, Text(n))
			continue
		}
		if v, ok := attr(n, fs.Attribute); ok {
			values = append(values, strings.TrimSpace(v))
		}
	}
	return values
}

func (d *Document) nodes(fs *FieldSpec) []*html.Node {
	switch {
	case fs.xpath != nil:
		return htmlquery.QuerySelectorAll(d.root, fs.xpath)
	case fs.css != nil:
		return goquery.NewDocumentFromNode(d.root).FindMatcher(fs.css).Nodes
	default:
		return nil
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

var blockElements = map[string]bool{
	"address": true, "div": true, "dd": true, "dt": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "li": true, "ol": true,
	"p": true, "table": true, "tbody": true, "thead": true, "tr": true, "ul": true,
}

// Text returns the visible text of n the way a browser renders it: script
// and style content dropped, whitespace runs collapsed, <br> and block
// boundaries turned into line breaks, and each line trimmed.
func Text(n *html.Node) string {
	var b strings.Builder
	renderText(&b, n)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(collapseSpace(n.Data))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "head":
			return
		case "br":
			b.WriteByte('\n')
			return
		case "td", "th":
			b.WriteByte(' ')
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
