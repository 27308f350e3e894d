package model

// CrawlConfig holds the parameters of one crawl pass.
// The feedback controller is the only component that changes it, and only
// between passes; a running pass works on its own copy.
type CrawlConfig struct {
	// MaxDepth is the maximum link distance from the seed that is still enqueued.
	MaxDepth int `json:"max_depth" yaml:"maxDepth"`

	// MaxPages is the maximum number of URLs dequeued in one pass.
	MaxPages int `json:"max_pages" yaml:"maxPages"`

	// Concurrency is the maximum number of fetches in flight.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// RelevanceThreshold is the inclusive lower bound a page must reach to be harvested.
	RelevanceThreshold float64 `json:"relevance_threshold" yaml:"relevanceThreshold"`

	// EvaluationThreshold is the mean score below which a refinement pass runs.
	EvaluationThreshold float64 `json:"evaluation_threshold" yaml:"evaluationThreshold"`
}
