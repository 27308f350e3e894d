package evaluate

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/rufus/internal/model"
)

// MaxScoredChars is how much of a document's joined content is scored.
const MaxScoredChars = 1000

// Scorer rates text against an instruction on a scale from 0 to 1.
type Scorer interface {
	Score(ctx context.Context, text, instruction string) (float64, error)
}

// RelevanceOracle is the embedding oracle used by EmbeddingScorer.
type RelevanceOracle interface {
	Relevance(ctx context.Context, text, instruction string) (float64, error)
}

// EmbeddingScorer scores with the relevance oracle.
type EmbeddingScorer struct {
	oracle RelevanceOracle
}

// NewEmbeddingScorer creates a Scorer backed by an embedding oracle.
func NewEmbeddingScorer(oracle RelevanceOracle) *EmbeddingScorer {
	return &EmbeddingScorer{oracle: oracle}
}

// Score implements Scorer.
func (s *EmbeddingScorer) Score(ctx context.Context, text, instruction string) (float64, error) {
	return s.oracle.Relevance(ctx, text, instruction)
}

// Completer answers a prompt with text, such as a chat model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// promptTemplate asks a chat model for a bare score.
const promptTemplate = `Evaluate the relevance of the following data to the instructions on a scale from 0 to 1.
Instructions: %s
Data: %s
Relevance Score (0-1):`

// LLMScorer asks a chat model to rate the text.
type LLMScorer struct {
	completer Completer
}

// NewLLMScorer creates a Scorer backed by a chat model.
func NewLLMScorer(c Completer) *LLMScorer {
	return &LLMScorer{completer: c}
}

// Score implements Scorer. Answers that are not a number are an error;
// numbers outside [0,1] are clamped.
func (s *LLMScorer) Score(ctx context.Context, text, instruction string) (float64, error) {
	answer, err := s.completer.Complete(ctx, fmt.Sprintf(promptTemplate, instruction, text))
	if err != nil {
		return 0, err
	}
	return ParseScore(answer)
}

// ParseScore reads a score from a model answer. Surrounding whitespace and
// a trailing period are ignored.
func ParseScore(answer string) (float64, error) {
	field := strings.TrimSuffix(strings.TrimSpace(answer), ".")
	score, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable score %q: %w", answer, err)
	}
	return min(max(score, 0), 1), nil
}

// Evaluator scores documents against an instruction.
type Evaluator struct {
	scorer      Scorer
	concurrency int
	logger      *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConcurrency bounds the number of documents scored at once.
func WithConcurrency(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an Evaluator using scorer.
func New(scorer Scorer, opts ...Option) *Evaluator {
	e := &Evaluator{
		scorer:      scorer,
		concurrency: 10,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores every document on the first MaxScoredChars characters of
// its joined content. The result has one entry per document, in input
// order. A document the scorer fails on scores 0. The only error returned is
// the context's.
func (e *Evaluator) Evaluate(ctx context.Context, docs []model.Document, instruction string) ([]model.ScoredPage, error) {
	scored := make([]model.ScoredPage, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, err := e.scorer.Score(gctx, Clip(doc.Text(), MaxScoredChars), instruction)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn("failed to score document, scoring it 0", "url", doc.URL, "error", err)
				score = 0
			}
			scored[i] = model.ScoredPage{
				URL:     doc.URL,
				Title:   doc.Title,
				Score:   score,
				Content: doc.Content,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}
	return scored, nil
}

// Clip returns the first n characters of s.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// MeanScore returns the average score, 0 for an empty set.
func MeanScore(pages []model.ScoredPage) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += p.Score
	}
	return sum / float64(len(pages))
}

// Rank returns a copy of pages sorted by descending score. Equal scores are
// ordered by URL.
func Rank(pages []model.ScoredPage) []model.ScoredPage {
	ranked := slices.Clone(pages)
	slices.SortStableFunc(ranked, func(a, b model.ScoredPage) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.URL, b.URL)
	})
	return ranked
}
