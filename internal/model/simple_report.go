package model

import "time"

// Summary is the condensed view of a CrawlReport used by the text and
// Markdown writers and stored alongside each run in the result database.
type Summary struct {
	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Instruction is the goal of the crawl.
	Instruction string `json:"instruction"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total wall time.
	Elapsed time.Duration `json:"elapsed"`

	// Passes is the number of crawl passes that ran (1 or 2).
	Passes int `json:"passes"`

	// Refined is true when the feedback controller relaxed the parameters.
	Refined bool `json:"refined"`

	// PagesDequeued is the number of URLs taken from the frontier over all passes.
	PagesDequeued int `json:"pages_dequeued"`

	// PagesHarvested is the number of pages kept by the final pass.
	PagesHarvested int `json:"pages_harvested"`

	// ResultCount is the number of ranked results.
	ResultCount int `json:"result_count"`

	// MeanScore is the mean score of the ranked results.
	MeanScore float64 `json:"mean_score"`

	// TopScore is the best score, 0 when there are no results.
	TopScore float64 `json:"top_score"`

	// FinalConfig is the configuration of the last pass.
	FinalConfig CrawlConfig `json:"final_config"`

	// Transitions lists the feedback decisions.
	Transitions []Transition `json:"transitions,omitempty"`

	// TimedOut indicates the crawl was cancelled.
	TimedOut bool `json:"timed_out"`

	// Error contains the error message if a step failed.
	Error string `json:"error,omitempty"`
}

// NewSummary condenses a report.
func NewSummary(r *CrawlReport) *Summary {
	s := &Summary{
		Seed:           r.Seed,
		Instruction:    r.Instruction,
		StartedAt:      r.StartedAt,
		Elapsed:        r.Duration(),
		Passes:         len(r.Passes),
		Refined:        r.Refined(),
		PagesHarvested: len(r.Harvested),
		ResultCount:    len(r.Results),
		FinalConfig:    r.Config,
		Transitions:    r.Transitions,
		TimedOut:       r.TimedOut,
		Error:          r.ErrorMessage,
	}

	for _, p := range r.Passes {
		s.PagesDequeued += p.Stats.Dequeued
	}

	if len(r.Results) > 0 {
		var sum float64
		for _, res := range r.Results {
			sum += res.Score
			if res.Score > s.TopScore {
				s.TopScore = res.Score
			}
		}
		s.MeanScore = sum / float64(len(r.Results))
	}

	return s
}
