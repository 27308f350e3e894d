package extract

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nao1215/rufus/internal/model"
)

const article = `<!DOCTYPE html>
<html>
<head><title> Pricing  Plans </title><style>p { color: red; }</style></head>
<body>
<header><nav><a href="/">Home</a> <a href="/docs">Docs</a></nav></header>
<main>
  <h1>Our pricing</h1>
  <p>The starter plan costs ten dollars. It includes
     three seats!</p>
  <ul><li>Email support</li><li>Weekly <b>backups</b></li></ul>
  <script>track("view")</script>
</main>
<aside>Related posts</aside>
<footer>Copyright 2024</footer>
</body>
</html>`

// TestExtract tests paragraph and sentence extraction.
func TestExtract(t *testing.T) {
	t.Parallel()

	page := model.HarvestedPage{URL: "https://example.com/pricing", RawContent: article}

	t.Run("paragraph granularity", func(t *testing.T) {
		t.Parallel()

		doc, err := New().Extract(page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.URL != page.URL {
			t.Errorf("expected URL %s, got %s", page.URL, doc.URL)
		}
		if doc.Title != "Pricing Plans" {
			t.Errorf("expected title 'Pricing Plans', got %q", doc.Title)
		}

		want := []string{
			"Our pricing",
			"The starter plan costs ten dollars. It includes three seats!",
			"Email support",
			"Weekly backups",
		}
		if fmt.Sprint(doc.Content) != fmt.Sprint(want) {
			t.Errorf("expected %q, got %q", want, doc.Content)
		}
	})

	t.Run("sentence granularity", func(t *testing.T) {
		t.Parallel()

		doc, err := New(WithGranularity(Sentence)).Extract(page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{
			"Our pricing",
			"The starter plan costs ten dollars.",
			"It includes three seats!",
			"Email support",
			"Weekly backups",
		}
		if fmt.Sprint(doc.Content) != fmt.Sprint(want) {
			t.Errorf("expected %q, got %q", want, doc.Content)
		}
	})

	t.Run("boilerplate is removed", func(t *testing.T) {
		t.Parallel()

		doc, _ := New().Extract(page)
		text := doc.Text()
		for _, unwanted := range []string{"Home", "Docs", "Related posts", "Copyright", "track", "color"} {
			if strings.Contains(text, unwanted) {
				t.Errorf("expected %q to be removed, got %q", unwanted, text)
			}
		}
	})

	t.Run("nested blocks are not repeated", func(t *testing.T) {
		t.Parallel()

		nested := model.HarvestedPage{
			URL:        "https://example.com",
			RawContent: `<body><blockquote><p>Quoted once</p></blockquote></body>`,
		}
		doc, _ := New().Extract(nested)
		if len(doc.Content) != 1 || doc.Content[0] != "Quoted once" {
			t.Errorf("expected a single unit, got %q", doc.Content)
		}
	})

	t.Run("pages without blocks fall back to body text", func(t *testing.T) {
		t.Parallel()

		plain := model.HarvestedPage{
			URL:        "https://example.com/plain",
			RawContent: "<html><body><div>just  some\n text</div><span>here</span></body></html>",
		}
		doc, err := New().Extract(plain)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(doc.Content) != 1 || doc.Content[0] != "just some text here" {
			t.Errorf("unexpected content %q", doc.Content)
		}
	})

	t.Run("empty page yields no content", func(t *testing.T) {
		t.Parallel()

		doc, err := New().Extract(model.HarvestedPage{URL: "https://example.com/empty"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Content == nil || len(doc.Content) != 0 {
			t.Errorf("expected empty non-nil content, got %#v", doc.Content)
		}
	})

	t.Run("readability falls back on unusable pages", func(t *testing.T) {
		t.Parallel()

		doc, err := New(WithReadability(true)).Extract(model.HarvestedPage{
			URL:        "https://example.com/short",
			RawContent: "<html><body><p>tiny</p></body></html>",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(doc.Text(), "tiny") {
			t.Errorf("expected text to survive, got %q", doc.Text())
		}
	})
}

// TestExtractReadability tests main-content isolation.
func TestExtractReadability(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("The quarterly report explains how revenue grew across every region, and why the team expects growth to continue. ", 8)
	raw := `<html><head><title>Quarterly report</title></head><body>
<div class="sidebar"><ul><li><a href="/a">Link one</a></li><li><a href="/b">Link two</a></li></ul></div>
<article><h1>Quarterly report</h1><p>` + body + `</p><p>` + body + `</p></article>
</body></html>`

	doc, err := New(WithReadability(true)).Extract(model.HarvestedPage{URL: "https://example.com/report", RawContent: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title == "" {
		t.Error("expected a title")
	}
	if !strings.Contains(doc.Text(), "revenue grew") {
		t.Errorf("expected article text, got %q", doc.Text())
	}
}

// TestParseGranularity tests configuration parsing.
func TestParseGranularity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{"", Paragraph, false},
		{"paragraph", Paragraph, false},
		{"Sentence", Sentence, false},
		{" sentence ", Sentence, false},
		{"word", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseGranularity(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownGranularity) {
					t.Errorf("expected ErrUnknownGranularity, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseGranularity(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

// TestSplitSentences tests the sentence splitter.
func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"single without terminator", "no end here", []string{"no end here"}},
		{"two sentences", "First one. Second one.", []string{"First one.", "Second one."}},
		{"question and exclamation", "Really? Yes! Fine.", []string{"Really?", "Yes!", "Fine."}},
		{"abbreviation before lower case", "See e.g. the docs. Then stop.", []string{"See e.g. the docs.", "Then stop."}},
		{"decimal numbers", "It costs 9.99 today. Buy now.", []string{"It costs 9.99 today.", "Buy now."}},
		{"closing quote", `He said "stop." Then left.`, []string{`He said "stop."`, "Then left."}},
		{"whitespace collapsed", "One.\n\n  Two.", []string{"One.", "Two."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SplitSentences(tt.in)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
