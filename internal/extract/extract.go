package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/nao1215/rufus/internal/model"
)

// Granularity selects how page text is split into content units.
type Granularity string

const (
	// Paragraph yields one unit per block element.
	Paragraph Granularity = "paragraph"

	// Sentence splits every block into sentences.
	Sentence Granularity = "sentence"
)

// ErrUnknownGranularity is returned by ParseGranularity.
var ErrUnknownGranularity = errors.New("unknown granularity")

// ParseGranularity converts a configuration value into a Granularity.
// An empty string selects Paragraph.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "", Paragraph:
		return Paragraph, nil
	case Sentence:
		return Sentence, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// boilerplate elements never contribute text.
const boilerplate = "script, style, noscript, template, header, footer, nav, aside"

// blocks are the elements that form one paragraph each.
const blocks = "p, li, h1, h2, h3, h4, h5, h6, pre, blockquote, td, th, dt, dd, figcaption"

// Extractor turns harvested HTML into documents.
// It is safe for concurrent use.
type Extractor struct {
	granularity Granularity
	readability bool
	logger      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithGranularity sets how text is split.
func WithGranularity(g Granularity) Option {
	return func(e *Extractor) {
		e.granularity = g
	}
}

// WithReadability isolates the main article with go-readability before
// extracting text. Pages readability cannot handle are extracted whole.
func WithReadability(enabled bool) Option {
	return func(e *Extractor) {
		e.readability = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor. The default granularity is Paragraph.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		granularity: Paragraph,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract removes boilerplate from the page and returns its text units in
// page order. A page without text yields a Document with no content.
func (e *Extractor) Extract(page model.HarvestedPage) (model.Document, error) {
	doc := model.Document{URL: page.URL, Content: make([]string, 0)}

	html := page.RawContent
	if e.readability {
		title, content, err := e.article(page)
		if err != nil {
			e.logger.Debug("readability failed, extracting whole page", "url", page.URL, "error", err)
		} else {
			doc.Title = title
			html = content
		}
	}

	root, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return doc, fmt.Errorf("failed to parse %s: %w", page.URL, err)
	}
	if doc.Title == "" {
		doc.Title = collapse(root.Find("title").First().Text())
	}

	root.Find(boilerplate).Remove()
	root.Find("head").Remove()

	paragraphs := paragraphsOf(root)
	if e.granularity == Sentence {
		for _, p := range paragraphs {
			doc.Content = append(doc.Content, SplitSentences(p)...)
		}
		return doc, nil
	}
	doc.Content = append(doc.Content, paragraphs...)
	return doc, nil
}

// article runs go-readability over the page.
func (e *Extractor) article(page model.HarvestedPage) (string, string, error) {
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return "", "", err
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(page.RawContent), pageURL)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(article.Content) == "" {
		return "", "", errors.New("no article content")
	}
	return collapse(article.Title), article.Content, nil
}

// paragraphsOf collects the text of the outermost block elements. When the
// page has no block elements, the whole remaining text is one paragraph.
func paragraphsOf(root *goquery.Document) []string {
	paragraphs := make([]string, 0)
	root.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blocks).Length() > 0 {
			return
		}
		if text := collapse(textOf(s)); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return paragraphs
	}

	scope := root.Find("body")
	if scope.Length() == 0 {
		scope = root.Selection
	}
	if text := collapse(textOf(scope)); text != "" {
		paragraphs = append(paragraphs, text)
	}
	return paragraphs
}

// textOf returns the text below s with a space between text nodes, so
// adjacent cells and list items do not run together.
func textOf(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		} else {
			b.WriteString(textOf(c))
		}
		b.WriteString(" ")
	})
	return b.String()
}

// SplitSentences splits text after '.', '!' or '?' when the next word does
// not start with a lower-case letter.
func SplitSentences(text string) []string {
	text = collapse(text)
	sentences := make([]string, 0)
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		for i < len(text) && strings.ContainsRune(".!?\"')", rune(text[i])) {
			i++
		}
		if i >= len(text) || text[i] != ' ' {
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[i+1:])
		if unicode.IsLower(next) {
			continue
		}
		if s := strings.TrimSpace(text[start:i]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// collapse trims s and folds every run of whitespace into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
