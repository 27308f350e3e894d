package model

import "time"

// CrawlReport collects everything one crawl request produced.
// Pipeline steps fill it in order: crawl, extract, evaluate, refine, rank.
type CrawlReport struct {
	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Instruction is the natural-language goal of the crawl.
	Instruction string `json:"instruction"`

	// StartedAt is when the first step began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last step returned.
	FinishedAt time.Time `json:"finished_at"`

	// Config is the configuration of the current (or last) pass.
	Config CrawlConfig `json:"config"`

	// State is the feedback state the request is in.
	State PassState `json:"state"`

	// Passes holds one record per crawl pass that ran.
	Passes []PassRecord `json:"passes"`

	// Transitions lists every move of the feedback state machine.
	Transitions []Transition `json:"transitions,omitempty"`

	// Harvested holds the pages kept by the current pass.
	// A refined pass replaces it; the two passes are never merged.
	Harvested []HarvestedPage `json:"-"`

	// Documents holds the text extracted from Harvested.
	Documents []Document `json:"-"`

	// Scored holds the evaluation of Documents that drives the feedback decision.
	Scored []ScoredPage `json:"-"`

	// Results is the final ranking, sorted by descending score.
	Results []ScoredPage `json:"results"`

	// PerformedSteps lists the names of the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true when the context was cancelled before the pipeline finished.
	TimedOut bool `json:"timed_out,omitempty"`

	// Error is the error of the last failing step, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as text, kept for JSON output.
	ErrorMessage string `json:"error,omitempty"`
}

// PassRecord describes one crawl pass.
type PassRecord struct {
	// State is InitialPass or RefinedPass.
	State PassState `json:"state"`

	// Config is the configuration the pass ran with.
	Config CrawlConfig `json:"config"`

	// Stats are the scheduler counters of the pass.
	Stats PassStats `json:"stats"`

	// Elapsed is the wall time of the pass.
	Elapsed time.Duration `json:"elapsed"`
}

// PassStats are the counters of one scheduler pass.
type PassStats struct {
	// Dequeued is the number of URLs taken from the frontier.
	Dequeued int `json:"dequeued"`

	// Fetched is the number of pages fetched successfully.
	Fetched int `json:"fetched"`

	// Failed is the number of fetch failures.
	Failed int `json:"failed"`

	// Harvested is the number of pages that passed the relevance gate.
	Harvested int `json:"harvested"`

	// Enqueued is the number of distinct URLs that entered the frontier.
	Enqueued int `json:"enqueued"`
}

// NewCrawlReport creates a report for a crawl of seed towards instruction.
func NewCrawlReport(seed, instruction string, cfg CrawlConfig) *CrawlReport {
	return &CrawlReport{
		Seed:           seed,
		Instruction:    instruction,
		StartedAt:      time.Now(),
		Config:         cfg,
		State:          InitialPass,
		Passes:         make([]PassRecord, 0, 2),
		Transitions:    make([]Transition, 0, 2),
		Harvested:      make([]HarvestedPage, 0),
		Results:        make([]ScoredPage, 0),
		PerformedSteps: make([]string, 0),
	}
}

// AddTransition records t and moves the report into t.To.
func (r *CrawlReport) AddTransition(t Transition) {
	r.Transitions = append(r.Transitions, t)
	r.State = t.To
}

// AddPass appends a pass record.
func (r *CrawlReport) AddPass(p PassRecord) {
	r.Passes = append(r.Passes, p)
}

// Refined reports whether a refinement pass ran.
func (r *CrawlReport) Refined() bool {
	for _, p := range r.Passes {
		if p.State == RefinedPass {
			return true
		}
	}
	return false
}

// Duration returns the wall time between start and finish.
// It is zero while the report is not finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
