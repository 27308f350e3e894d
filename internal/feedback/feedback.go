package feedback

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/rufus/internal/evaluate"
	"github.com/nao1215/rufus/internal/model"
)

// Policy describes how a refinement relaxes the crawl configuration.
type Policy struct {
	// ThresholdStep is subtracted from the relevance threshold.
	ThresholdStep float64

	// ThresholdFloor is the lowest threshold a refinement produces.
	ThresholdFloor float64

	// DepthStep is added to the maximum depth.
	DepthStep int

	// PagesStep is added to the page budget.
	PagesStep int
}

// DefaultPolicy lowers the threshold by 0.1 down to 0.1 and widens the
// crawl by two levels and 500 pages.
func DefaultPolicy() Policy {
	return Policy{
		ThresholdStep:  0.1,
		ThresholdFloor: 0.1,
		DepthStep:      2,
		PagesStep:      500,
	}
}

// Relax returns the configuration of a refinement pass. The relevance
// threshold is never raised and the depth and budget never shrink.
func (p Policy) Relax(cfg model.CrawlConfig) model.CrawlConfig {
	relaxed := cfg
	relaxed.RelevanceThreshold = min(cfg.RelevanceThreshold, max(cfg.RelevanceThreshold-p.ThresholdStep, p.ThresholdFloor))
	relaxed.MaxDepth = cfg.MaxDepth + max(p.DepthStep, 0)
	relaxed.MaxPages = cfg.MaxPages + max(p.PagesStep, 0)
	return relaxed
}

// Decision is the outcome of evaluating one pass.
type Decision struct {
	// Refine is true when another crawl pass must run.
	Refine bool

	// Config is the configuration of the next pass, or the unchanged
	// configuration when no pass follows.
	Config model.CrawlConfig

	// Transition is the state change that was recorded.
	Transition model.Transition
}

// Controller is the feedback state machine of one crawl request:
// InitialPass moves to RefinedPass or Done, RefinedPass moves to Done.
// At most one refinement is ever requested.
type Controller struct {
	policy Policy
	logger *slog.Logger

	mu          sync.Mutex
	state       model.PassState
	transitions []model.Transition
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller in InitialPass.
func NewController(policy Policy, opts ...Option) *Controller {
	c := &Controller{
		policy:      policy,
		logger:      slog.Default(),
		state:       model.InitialPass,
		transitions: make([]model.Transition, 0, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decide looks at the scored pages of the pass that just ran with cfg.
//
// After the initial pass an empty result, or a mean score below
// cfg.EvaluationThreshold, requests a refinement with relaxed parameters;
// any other result finishes the request. After the refined pass the request
// always finishes. Once Done, Decide records nothing and returns cfg.
func (c *Controller) Decide(scored []model.ScoredPage, cfg model.CrawlConfig) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	mean := evaluate.MeanScore(scored)
	t := model.Transition{From: c.state, To: model.Done, MeanScore: mean, Scored: len(scored)}
	decision := Decision{Config: cfg}

	switch c.state {
	case model.InitialPass:
		switch {
		case len(scored) == 0:
			t.To = model.RefinedPass
			t.Reason = "no pages harvested"
		case mean < cfg.EvaluationThreshold:
			t.To = model.RefinedPass
			t.Reason = fmt.Sprintf("mean score %.2f below evaluation threshold %.2f", mean, cfg.EvaluationThreshold)
		default:
			t.Reason = fmt.Sprintf("mean score %.2f meets evaluation threshold %.2f", mean, cfg.EvaluationThreshold)
		}
	case model.RefinedPass:
		t.Reason = "refinement pass finished"
	default:
		t.Reason = "already done"
		decision.Transition = t
		return decision
	}

	if t.To == model.RefinedPass {
		decision.Refine = true
		decision.Config = c.policy.Relax(cfg)
		c.logger.Info("refining crawl",
			"reason", t.Reason,
			"relevance_threshold", decision.Config.RelevanceThreshold,
			"max_depth", decision.Config.MaxDepth,
			"max_pages", decision.Config.MaxPages,
		)
	} else {
		c.logger.Debug("crawl finished", "reason", t.Reason)
	}

	c.state = t.To
	c.transitions = append(c.transitions, t)
	decision.Transition = t
	return decision
}

// State returns the current state.
func (c *Controller) State() model.PassState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transitions returns a copy of the recorded transitions.
func (c *Controller) Transitions() []model.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}
