package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/rufus/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor crawls several seeds concurrently, one pipeline per seed.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each seed, so that no
	// crawl state is shared between seeds.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of seeds crawled at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports.
	// Access is synchronized via mutex.
	results []*model.CrawlReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// pipelineFactory is called once per seed.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
		results:         make([]*model.CrawlReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every seed towards instruction with cfg.
// It respects the configured concurrency limit and context cancellation.
//
// Returns one report per seed in input order, even for seeds that failed;
// a failed seed's report carries its error. Seeds not started before
// cancellation have a nil report. The error return is only set when the
// batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string, instruction string, cfg model.CrawlConfig) ([]*model.CrawlReport, error) {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*model.CrawlReport, len(seeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			report := model.NewCrawlReport(seed, instruction, cfg)
			err := bp.pipelineFactory().Execute(ctx, report)

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("crawl failed",
					"seed", seed,
					"error", err,
				)
				// The error is recorded in the report; other seeds go on.
				return nil
			}

			bp.logger.Info("crawl completed",
				"seed", seed,
				"results", len(report.Results),
			)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback crawls every seed and calls callback with each
// finished report and the seed's index. The callback runs on the crawling
// goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	instruction string,
	cfg model.CrawlConfig,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report := model.NewCrawlReport(seed, instruction, cfg)
			_ = bp.pipelineFactory().Execute(ctx, report) //nolint:errcheck // Error is stored in report

			callback(report, i)
			return nil
		})
	}

	return g.Wait()
}
