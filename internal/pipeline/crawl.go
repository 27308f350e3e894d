package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/rufus/internal/feedback"
	"github.com/nao1215/rufus/internal/model"
)

// Deps are the components one crawl request is built from.
// The Crawler keeps per-pass state and must not be shared between
// concurrent requests; the Extractor and Evaluator may be.
type Deps struct {
	Crawler   Crawler
	Extractor Extractor
	Evaluator Evaluator

	// Policy relaxes the configuration for the refinement pass.
	Policy feedback.Policy

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Build creates the standard pipeline: crawl, extract, evaluate, refine
// (which may repeat the first three once) and rank.
func Build(deps Deps, opts ...Option) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	crawl := NewCrawlStep(deps.Crawler, logger)
	extract := NewExtractStep(deps.Extractor, logger)
	evaluate := NewEvaluateStep(deps.Evaluator, logger)
	controller := feedback.NewController(deps.Policy, feedback.WithLogger(logger))

	p := New(append([]Option{WithLogger(logger)}, opts...)...)
	p.AddSteps(
		crawl,
		extract,
		evaluate,
		NewRefineStep(controller, logger, crawl, extract, evaluate),
		NewRankStep(),
	)
	return p
}

// Crawl runs a complete crawl request from seed towards instruction and
// returns the ranked results together with the full report.
func Crawl(ctx context.Context, deps Deps, seed, instruction string, cfg model.CrawlConfig) ([]model.ScoredPage, *model.CrawlReport, error) {
	report := model.NewCrawlReport(seed, instruction, cfg)
	err := Build(deps).Execute(ctx, report)
	return report.Results, report, err
}
