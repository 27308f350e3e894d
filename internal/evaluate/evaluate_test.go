package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/rufus/internal/model"
)

// scorerFunc adapts a function to Scorer.
type scorerFunc func(ctx context.Context, text, instruction string) (float64, error)

func (f scorerFunc) Score(ctx context.Context, text, instruction string) (float64, error) {
	return f(ctx, text, instruction)
}

// completerFunc adapts a function to Completer.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type fixedOracle float64

func (o fixedOracle) Relevance(context.Context, string, string) (float64, error) {
	return float64(o), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestEvaluate tests document scoring.
func TestEvaluate(t *testing.T) {
	t.Parallel()

	docs := []model.Document{
		{URL: "https://example.com/a", Title: "A", Content: []string{"alpha", "pricing"}},
		{URL: "https://example.com/b", Content: []string{"beta"}},
		{URL: "https://example.com/c", Content: []string{"broken"}},
	}

	t.Run("scores in input order", func(t *testing.T) {
		t.Parallel()

		scorer := scorerFunc(func(_ context.Context, text, _ string) (float64, error) {
			switch {
			case strings.Contains(text, "pricing"):
				return 0.9, nil
			case strings.Contains(text, "broken"):
				return 0, errors.New("model unavailable")
			default:
				return 0.2, nil
			}
		})

		scored, err := New(scorer, WithLogger(quietLogger())).Evaluate(context.Background(), docs, "find pricing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []float64{0.9, 0.2, 0}
		for i, p := range scored {
			if p.URL != docs[i].URL || p.Score != want[i] {
				t.Errorf("entry %d: got %s=%v, want %s=%v", i, p.URL, p.Score, docs[i].URL, want[i])
			}
		}
		if scored[0].Title != "A" || fmt.Sprint(scored[0].Content) != "[alpha pricing]" {
			t.Errorf("expected document fields to be carried, got %+v", scored[0])
		}
	})

	t.Run("scores only the first 1000 characters", func(t *testing.T) {
		t.Parallel()

		long := []model.Document{{URL: "https://example.com/long", Content: []string{strings.Repeat("x", 800), strings.Repeat("y", 800)}}}
		var seen atomic.Int64
		scorer := scorerFunc(func(_ context.Context, text, _ string) (float64, error) {
			seen.Store(int64(len(text)))
			return 1, nil
		})

		if _, err := New(scorer).Evaluate(context.Background(), long, "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen.Load() != MaxScoredChars {
			t.Errorf("expected %d characters, got %d", MaxScoredChars, seen.Load())
		}
	})

	t.Run("respects the concurrency limit", func(t *testing.T) {
		t.Parallel()

		many := make([]model.Document, 20)
		for i := range many {
			many[i] = model.Document{URL: fmt.Sprintf("https://example.com/%d", i), Content: []string{"text"}}
		}

		var inFlight, peak atomic.Int32
		var mu sync.Mutex
		scorer := scorerFunc(func(context.Context, string, string) (float64, error) {
			n := inFlight.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return 0.5, nil
		})

		scored, err := New(scorer, WithConcurrency(3)).Evaluate(context.Background(), many, "x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(scored) != 20 {
			t.Errorf("expected 20 results, got %d", len(scored))
		}
		if peak.Load() > 3 {
			t.Errorf("expected at most 3 concurrent scores, got %d", peak.Load())
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		scored, err := New(scorerFunc(nil)).Evaluate(context.Background(), nil, "x")
		if err != nil || len(scored) != 0 {
			t.Errorf("expected no results, got %v (%v)", scored, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		scorer := scorerFunc(func(ctx context.Context, _, _ string) (float64, error) {
			return 0, ctx.Err()
		})
		if _, err := New(scorer).Evaluate(ctx, docs, "x"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("embedding scorer", func(t *testing.T) {
		t.Parallel()

		scored, err := New(NewEmbeddingScorer(fixedOracle(0.4))).Evaluate(context.Background(), docs[:1], "x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if scored[0].Score != 0.4 {
			t.Errorf("expected 0.4, got %v", scored[0].Score)
		}
	})
}

// TestLLMScorer tests prompting a chat model for scores.
func TestLLMScorer(t *testing.T) {
	t.Parallel()

	t.Run("prompt carries instruction and data", func(t *testing.T) {
		t.Parallel()

		var prompt string
		scorer := NewLLMScorer(completerFunc(func(_ context.Context, p string) (string, error) {
			prompt = p
			return " 0.8\n", nil
		}))

		score, err := scorer.Score(context.Background(), "the data", "the instruction")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score != 0.8 {
			t.Errorf("expected 0.8, got %v", score)
		}
		for _, want := range []string{"scale from 0 to 1", "Instructions: the instruction", "Data: the data"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("expected prompt to contain %q, got %q", want, prompt)
			}
		}
	})

	t.Run("completion errors are returned", func(t *testing.T) {
		t.Parallel()

		scorer := NewLLMScorer(completerFunc(func(context.Context, string) (string, error) {
			return "", errors.New("rate limited")
		}))
		if _, err := scorer.Score(context.Background(), "d", "i"); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("unparsable answers score zero in the evaluator", func(t *testing.T) {
		t.Parallel()

		scorer := NewLLMScorer(completerFunc(func(context.Context, string) (string, error) {
			return "quite relevant", nil
		}))
		scored, err := New(scorer, WithLogger(quietLogger())).Evaluate(context.Background(),
			[]model.Document{{URL: "https://example.com", Content: []string{"x"}}}, "i")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if scored[0].Score != 0 {
			t.Errorf("expected 0, got %v", scored[0].Score)
		}
	})
}

// TestParseScore tests reading scores from model answers.
func TestParseScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0.75", 0.75, false},
		{"  1\n", 1, false},
		{"0.3.", 0.3, false},
		{"1.5", 1, false},
		{"-0.2", 0, false},
		{"high", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseScore(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScore(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseScore(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestClip tests character clipping.
func TestClip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"日本語テキスト", 3, "日本語"},
		{"", 5, ""},
	}

	for _, tt := range tests {
		if got := Clip(tt.in, tt.n); got != tt.want {
			t.Errorf("Clip(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

// TestMeanScore tests averaging.
func TestMeanScore(t *testing.T) {
	t.Parallel()

	if got := MeanScore(nil); got != 0 {
		t.Errorf("expected 0 for empty set, got %v", got)
	}
	pages := []model.ScoredPage{{Score: 0.2}, {Score: 0.4}, {Score: 0.9}}
	if got := MeanScore(pages); got < 0.4999 || got > 0.5001 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

// TestRank tests ordering of the final results.
func TestRank(t *testing.T) {
	t.Parallel()

	pages := []model.ScoredPage{
		{URL: "https://example.com/c", Score: 0.5},
		{URL: "https://example.com/a", Score: 0.9},
		{URL: "https://example.com/d", Score: 0.5},
		{URL: "https://example.com/b", Score: 0.5},
		{URL: "https://example.com/e", Score: 0.1},
	}

	ranked := Rank(pages)

	want := []string{"/a", "/b", "/c", "/d", "/e"}
	for i, p := range ranked {
		if p.URL != "https://example.com"+want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.URL)
		}
	}
	if pages[0].URL != "https://example.com/c" {
		t.Error("expected input to be left untouched")
	}
	if len(ranked) != len(pages) {
		t.Errorf("expected no truncation, got %d of %d", len(ranked), len(pages))
	}
}
