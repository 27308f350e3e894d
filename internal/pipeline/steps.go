package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/rufus/internal/evaluate"
	"github.com/nao1215/rufus/internal/feedback"
	"github.com/nao1215/rufus/internal/model"
)

// Crawler runs one crawl pass. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, seed, instruction string, cfg model.CrawlConfig) ([]model.HarvestedPage, error)
	Stats() model.PassStats
}

// Extractor turns a harvested page into a document. *extract.Extractor implements it.
type Extractor interface {
	Extract(page model.HarvestedPage) (model.Document, error)
}

// Evaluator scores documents. *evaluate.Evaluator implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, docs []model.Document, instruction string) ([]model.ScoredPage, error)
}

// CrawlStep runs one crawl pass with the report's current configuration and
// replaces the report's harvested pages with the result.
type CrawlStep struct {
	crawler Crawler
	logger  *slog.Logger
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(c Crawler, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{crawler: c, logger: logger}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step. When the pass is interrupted the partial
// harvest is kept and the error is returned.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	start := time.Now()
	pages, err := s.crawler.Crawl(ctx, report.Seed, report.Instruction, report.Config)

	report.Harvested = pages
	report.AddPass(model.PassRecord{
		State:   report.State,
		Config:  report.Config,
		Stats:   s.crawler.Stats(),
		Elapsed: time.Since(start),
	})

	if err != nil {
		return fmt.Errorf("crawl pass failed: %w", err)
	}

	s.logger.Info("crawl completed",
		"pass", report.State,
		"harvested", len(pages),
		"elapsed", time.Since(start),
	)
	return nil
}

// ExtractStep turns the harvested pages into documents.
type ExtractStep struct {
	extractor Extractor
	logger    *slog.Logger
}

// NewExtractStep creates an extraction step.
func NewExtractStep(e Extractor, logger *slog.Logger) *ExtractStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStep{extractor: e, logger: logger}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction step. A page that cannot be parsed yields a
// document without text, so it is still scored.
func (s *ExtractStep) Do(_ context.Context, report *model.CrawlReport) error {
	docs := make([]model.Document, 0, len(report.Harvested))
	for _, page := range report.Harvested {
		doc, err := s.extractor.Extract(page)
		if err != nil {
			s.logger.Warn("failed to extract page, keeping it without text", "url", page.URL, "error", err)
			doc = model.Document{URL: page.URL, Content: []string{}}
		}
		docs = append(docs, doc)
	}
	report.Documents = docs
	return nil
}

// EvaluateStep scores the extracted documents against the instruction.
type EvaluateStep struct {
	evaluator Evaluator
	logger    *slog.Logger
}

// NewEvaluateStep creates an evaluation step.
func NewEvaluateStep(e Evaluator, logger *slog.Logger) *EvaluateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluateStep{evaluator: e, logger: logger}
}

// Name returns the step name.
func (s *EvaluateStep) Name() string {
	return "evaluate"
}

// Do executes the evaluation step.
func (s *EvaluateStep) Do(ctx context.Context, report *model.CrawlReport) error {
	scored, err := s.evaluator.Evaluate(ctx, report.Documents, report.Instruction)
	if err != nil {
		return err
	}
	report.Scored = scored
	s.logger.Debug("documents evaluated",
		"documents", len(scored),
		"mean_score", evaluate.MeanScore(scored),
	)
	return nil
}

// RefineStep asks the feedback controller whether the first pass was good
// enough. When it was not, the pass is repeated with the relaxed
// configuration; the second pass replaces the results of the first.
type RefineStep struct {
	controller *feedback.Controller
	pass       []Step
	logger     *slog.Logger
}

// NewRefineStep creates a refinement step. pass holds the steps that make
// up one crawl pass, normally crawl, extract and evaluate.
func NewRefineStep(controller *feedback.Controller, logger *slog.Logger, pass ...Step) *RefineStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefineStep{controller: controller, pass: pass, logger: logger}
}

// Name returns the step name.
func (s *RefineStep) Name() string {
	return "refine"
}

// Do executes the refinement step.
func (s *RefineStep) Do(ctx context.Context, report *model.CrawlReport) error {
	decision := s.controller.Decide(report.Scored, report.Config)
	report.AddTransition(decision.Transition)
	if !decision.Refine {
		return nil
	}

	report.Config = decision.Config
	// The refined pass replaces the first one; nothing of it may survive an
	// interrupted second pass.
	report.Harvested = nil
	report.Documents = nil
	report.Scored = nil
	for _, step := range s.pass {
		if err := step.Do(ctx, report); err != nil {
			return fmt.Errorf("refinement %s failed: %w", step.Name(), err)
		}
	}

	final := s.controller.Decide(report.Scored, report.Config)
	report.AddTransition(final.Transition)
	return nil
}

// RankStep sorts the final scored documents into the report's results.
type RankStep struct{}

// NewRankStep creates a ranking step.
func NewRankStep() *RankStep {
	return &RankStep{}
}

// Name returns the step name.
func (s *RankStep) Name() string {
	return "rank"
}

// Do executes the ranking step.
func (s *RankStep) Do(_ context.Context, report *model.CrawlReport) error {
	report.Results = evaluate.Rank(report.Scored)
	if report.Results == nil {
		report.Results = make([]model.ScoredPage, 0)
	}
	return nil
}
