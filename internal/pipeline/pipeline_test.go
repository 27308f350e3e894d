package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/rufus/internal/feedback"
	"github.com/nao1215/rufus/internal/model"
)

// mockStep is a Step whose behaviour is supplied by the test.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.CrawlReport) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, report *model.CrawlReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func newReport() *model.CrawlReport {
	return model.NewCrawlReport("https://example.com", "find pricing", model.CrawlConfig{
		MaxDepth:            2,
		MaxPages:            10,
		Concurrency:         2,
		RelevanceThreshold:  0.5,
		EvaluationThreshold: 0.7,
	})
}

// crawlSteps returns steps that fill a report the way a real crawl does:
// harvest two pages, then rank a scored result.
func crawlSteps() (*mockStep, *mockStep) {
	crawl := &mockStep{
		name: "crawl",
		doFunc: func(_ context.Context, r *model.CrawlReport) error {
			r.Harvested = harvested("https://example.com", "https://example.com/pricing")
			return nil
		},
	}
	rank := &mockStep{
		name: "rank",
		doFunc: func(_ context.Context, r *model.CrawlReport) error {
			r.Results = []model.ScoredPage{{URL: "https://example.com/pricing", Score: 0.9}}
			return nil
		},
	}
	return crawl, rank
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("crawl report is filled step by step", func(t *testing.T) {
		t.Parallel()

		crawl, rank := crawlSteps()
		p := New(WithLogger(discardLogger()))
		p.AddSteps(crawl, rank)

		report := newReport()
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !slices.Equal(report.PerformedSteps, []string{"crawl", "rank"}) {
			t.Errorf("unexpected performed steps %v", report.PerformedSteps)
		}
		if len(report.Harvested) != 2 || len(report.Results) != 1 {
			t.Errorf("expected 2 harvested pages and 1 result, got %d and %d", len(report.Harvested), len(report.Results))
		}
		if report.TimedOut || report.Error != nil {
			t.Errorf("unexpected failure state: timed out %v, error %v", report.TimedOut, report.Error)
		}
	})

	t.Run("finish time is set after the last step", func(t *testing.T) {
		t.Parallel()

		var seenDuringRun time.Time
		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{
			name: "crawl",
			doFunc: func(_ context.Context, r *model.CrawlReport) error {
				seenDuringRun = r.FinishedAt
				return nil
			},
		})

		report := newReport()
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !seenDuringRun.IsZero() {
			t.Error("expected no finish time while steps are running")
		}
		if report.FinishedAt.Before(report.StartedAt) {
			t.Errorf("finish time %v is before start time %v", report.FinishedAt, report.StartedAt)
		}
	})

	t.Run("finish time is set on failure", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{
			name:   "crawl",
			doFunc: func(context.Context, *model.CrawlReport) error { return errors.New("seed unreachable") },
		})

		report := newReport()
		_ = p.Execute(context.Background(), report) //nolint:errcheck // checked through the report

		if report.FinishedAt.IsZero() {
			t.Error("expected finish time on a failed crawl")
		}
	})

	t.Run("deadline during a step marks the report timed out", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, rank := crawlSteps()
		crawl := &mockStep{
			name: "crawl",
			doFunc: func(ctx context.Context, r *model.CrawlReport) error {
				r.Harvested = harvested("https://example.com")
				cancel()
				return ctx.Err()
			},
		}
		p := New(WithLogger(discardLogger()), WithContinueOnError(true))
		p.AddSteps(crawl, rank)

		report := newReport()
		err := p.Execute(ctx, report)

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !report.TimedOut {
			t.Error("expected the report to be marked timed out")
		}
		if !errors.Is(report.Error, context.Canceled) || report.ErrorMessage == "" {
			t.Errorf("expected the cancellation to be recorded, got %v %q", report.Error, report.ErrorMessage)
		}
		if rank.callCount != 0 {
			t.Error("expected rank not to run after cancellation")
		}
		if len(report.Harvested) != 1 {
			t.Errorf("expected the partial harvest to be kept, got %d pages", len(report.Harvested))
		}
	})

	t.Run("cancelled before start runs nothing", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		crawl, rank := crawlSteps()
		p := New(WithLogger(discardLogger()))
		p.AddSteps(crawl, rank)

		report := newReport()
		if err := p.Execute(ctx, report); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}

		if crawl.callCount != 0 || len(report.PerformedSteps) != 0 {
			t.Errorf("expected no step to run, performed %v", report.PerformedSteps)
		}
		if !report.TimedOut || report.FinishedAt.IsZero() {
			t.Errorf("expected timed out report with finish time, got %v %v", report.TimedOut, report.FinishedAt)
		}
	})

	t.Run("step failure stops the crawl by default", func(t *testing.T) {
		t.Parallel()

		errEmbed := errors.New("embedding endpoint returned 500")
		_, rank := crawlSteps()
		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&mockStep{
				name:   "evaluate",
				doFunc: func(context.Context, *model.CrawlReport) error { return errEmbed },
			},
			rank,
		)

		report := newReport()
		err := p.Execute(context.Background(), report)

		if !errors.Is(err, errEmbed) {
			t.Fatalf("expected %v, got %v", errEmbed, err)
		}
		if report.ErrorMessage != errEmbed.Error() {
			t.Errorf("unexpected error message %q", report.ErrorMessage)
		}
		if report.TimedOut {
			t.Error("a plain failure is not a timeout")
		}
		if rank.callCount != 0 || len(report.PerformedSteps) != 0 {
			t.Errorf("expected nothing after the failure, performed %v", report.PerformedSteps)
		}
	})

	t.Run("step failure is recorded and skipped when continuing", func(t *testing.T) {
		t.Parallel()

		_, rank := crawlSteps()
		p := New(WithLogger(discardLogger()), WithContinueOnError(true))
		p.AddSteps(
			&mockStep{
				name:   "evaluate",
				doFunc: func(context.Context, *model.CrawlReport) error { return errors.New("no scores") },
			},
			rank,
		)

		report := newReport()
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("expected nil error when continuing, got %v", err)
		}

		if report.Error == nil {
			t.Error("expected the failure to stay on the report")
		}
		if !slices.Equal(report.PerformedSteps, []string{"rank"}) {
			t.Errorf("unexpected performed steps %v", report.PerformedSteps)
		}
		if len(report.Results) != 1 {
			t.Errorf("expected rank to still produce results, got %d", len(report.Results))
		}
	})
}

func TestBuild(t *testing.T) {
	t.Parallel()

	p := Build(Deps{Policy: feedback.DefaultPolicy(), Logger: discardLogger()})

	want := []string{"crawl", "extract", "evaluate", "refine", "rank"}
	if !slices.Equal(p.StepNames(), want) {
		t.Errorf("expected steps %v, got %v", want, p.StepNames())
	}
	if p.StepCount() != len(want) {
		t.Errorf("expected %d steps, got %d", len(want), p.StepCount())
	}
	if p.continueOnError {
		t.Error("expected the crawl pipeline to stop on the first failure")
	}
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(nil))
		if p.logger == nil {
			t.Error("expected a default logger")
		}
		if p.StepCount() != 0 || len(p.StepNames()) != 0 {
			t.Errorf("expected an empty pipeline, got %v", p.StepNames())
		}
	})

	t.Run("steps keep insertion order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "crawl"})
		p.AddSteps(&mockStep{name: "extract"}, &mockStep{name: "rank"})

		if !slices.Equal(p.StepNames(), []string{"crawl", "extract", "rank"}) {
			t.Errorf("unexpected order %v", p.StepNames())
		}
	})
}
