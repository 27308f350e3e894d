package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() to tell them apart.
var (
	// ErrNoSeed is returned when no seed URL is specified.
	ErrNoSeed = errors.New("no seed specified: provide at least one URL")

	// ErrInvalidSeed is returned when a seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed: must be an absolute http or https URL")

	// ErrNoInstruction is returned when the crawl instruction is empty.
	ErrNoInstruction = errors.New("no instruction specified: use --instruction")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when the maximum depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidThreshold is returned when a threshold lies outside [0,1].
	ErrInvalidThreshold = errors.New("invalid threshold: must be between 0 and 1")

	// ErrInvalidRefineStep is returned when a refinement step is negative.
	ErrInvalidRefineStep = errors.New("invalid refine step: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the number of concurrent seeds is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --text is specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: use only one of --json, --markdown and --text")

	// ErrInvalidGranularity is returned for an unknown extraction granularity.
	ErrInvalidGranularity = errors.New("invalid granularity: must be paragraph or sentence")

	// ErrUnknownOracle is returned for an unknown relevance oracle name.
	ErrUnknownOracle = errors.New("unknown oracle: must be openai or local")

	// ErrUnknownScorer is returned for an unknown evaluation scorer name.
	ErrUnknownScorer = errors.New("unknown scorer: must be embedding or llm")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to fall back to the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
