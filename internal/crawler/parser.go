package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parser extracts links and visible text from an HTML page.
//
// It walks the golang.org/x/net/html tree, which copes with the malformed
// markup common on the web.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// Link is a crawlable hyperlink found on a page.
type Link struct {
	// URL is the normalized absolute target.
	URL string

	// Text is the anchor text with whitespace collapsed.
	Text string
}

// ParseResult contains what a page contributes to the crawl.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links lists the crawlable links in document order.
	// The same URL may appear more than once with different anchor text.
	Links []Link

	// Text is the visible text of the page, without scripts and styles.
	Text string
}

// invisible elements never contribute text.
var invisible = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts its links and text.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	base := p.baseURL
	if href := findBaseHref(doc); href != "" {
		if ref, err := url.Parse(href); err == nil {
			base = p.baseURL.ResolveReference(ref)
		}
	}

	result := &ParseResult{Links: make([]Link, 0)}
	var text strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.DataAtom == atom.Title && result.Title == "" {
				result.Title = collapse(textOf(n))
			}
			if invisible[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.A {
				if target, ok := Resolve(base, getAttr(n, "href")); ok {
					result.Links = append(result.Links, Link{URL: target, Text: collapse(textOf(n))})
				}
			}
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.Text = collapse(text.String())
	return result, nil
}

// findBaseHref returns the href of the first <base> element.
func findBaseHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Base {
		return getAttr(n, "href")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBaseHref(c); href != "" {
			return href
		}
	}
	return ""
}

// textOf concatenates the text below n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collapse trims s and folds every run of whitespace into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
