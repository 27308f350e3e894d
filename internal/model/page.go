package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CrawlTarget is a URL waiting in the frontier.
// Lower Priority values are dequeued first. Two targets are the same
// entity when their normalized URLs are equal.
type CrawlTarget struct {
	// URL is the normalized absolute URL.
	URL string `json:"url"`

	// Priority orders the frontier; 0 is the best possible value and 1 the worst.
	Priority float64 `json:"priority"`

	// Depth is the number of links followed from the seed. The seed has depth 0.
	Depth int `json:"depth"`
}

// HarvestedPage is a fetched page whose text passed the relevance gate.
// It is created once and never modified afterwards.
type HarvestedPage struct {
	// URL is the normalized URL the page was fetched from.
	URL string `json:"url"`

	// RawContent is the response body as received (HTML).
	RawContent string `json:"-"`

	// Relevance is the gate score the page obtained while crawling.
	Relevance float64 `json:"relevance"`

	// Depth is the link distance from the seed.
	Depth int `json:"depth"`
}

// Hash returns the SHA-256 hex digest of the raw content.
// An empty page has an empty hash.
func (p HarvestedPage) Hash() string {
	if p.RawContent == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(p.RawContent))
	return hex.EncodeToString(sum[:])
}

// Document is the text extracted from a harvested page.
type Document struct {
	// URL is the page the text came from.
	URL string `json:"url"`

	// Title is the page title, when one could be found.
	Title string `json:"title,omitempty"`

	// Content holds the text units (paragraphs or sentences) in page order.
	Content []string `json:"content"`
}

// Text joins the content units with single spaces.
func (d Document) Text() string {
	return strings.Join(d.Content, " ")
}

// ScoredPage is a document together with its relevance score in [0,1].
type ScoredPage struct {
	// URL is the page the document was extracted from.
	URL string `json:"url"`

	// Title is the page title.
	Title string `json:"title,omitempty"`

	// Score is the evaluation score against the instruction.
	Score float64 `json:"score"`

	// Content holds the extracted text units.
	Content []string `json:"content"`
}
