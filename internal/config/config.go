package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/rufus/internal/model"
)

// Default configuration values.
const (
	// DefaultMaxDepth is the link distance from the seed that is still followed.
	DefaultMaxDepth = 10

	// DefaultMaxPages is the number of URLs one pass may dequeue.
	DefaultMaxPages = 1000

	// DefaultConcurrency is the number of fetches in flight within one wave.
	DefaultConcurrency = 10

	// DefaultRelevanceThreshold is the inclusive score a page needs to be harvested.
	DefaultRelevanceThreshold = 0.3

	// DefaultEvaluationThreshold is the mean score below which the crawl is refined.
	DefaultEvaluationThreshold = 0.7

	// DefaultThresholdStep is how much a refinement lowers the relevance threshold.
	DefaultThresholdStep = 0.1

	// DefaultThresholdFloor is the value a refinement never lowers the threshold below.
	DefaultThresholdFloor = 0.1

	// DefaultDepthStep is how much a refinement raises the maximum depth.
	DefaultDepthStep = 2

	// DefaultPagesStep is how much a refinement raises the page budget.
	DefaultPagesStep = 500

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 10 * time.Second

	// DefaultBatchSize is the number of seeds crawled at the same time.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies rufus in HTTP requests.
	DefaultUserAgent = "rufus/1.0 (+https://github.com/nao1215/rufus)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultCacheSize is the number of embeddings kept in memory.
	DefaultCacheSize = 4096

	// AppName is the application name used for XDG directory paths.
	AppName = "rufus"
)

// Extraction granularities.
const (
	// GranularityParagraph splits page text on block elements.
	GranularityParagraph = "paragraph"

	// GranularitySentence splits page text into sentences.
	GranularitySentence = "sentence"
)

// Relevance oracles.
const (
	// OracleOpenAI embeds text with the OpenAI embeddings API.
	OracleOpenAI = "openai"

	// OracleLocal embeds text with an offline feature-hashing model.
	OracleLocal = "local"
)

// Evaluation scorers.
const (
	// ScorerEmbedding scores documents with the relevance oracle.
	ScorerEmbedding = "embedding"

	// ScorerLLM asks a chat model to rate each document.
	ScorerLLM = "llm"
)

// Config holds all configuration options for rufus.
// It is populated from the config file and CLI flags and passed through
// the application rather than kept in global state.
type Config struct {
	// Seeds are the URLs each crawl starts from.
	Seeds []string

	// Instruction is the natural-language goal the crawl is directed at.
	Instruction string

	// MaxDepth is the maximum link distance from the seed.
	MaxDepth int

	// MaxPages is the number of URLs one pass may dequeue.
	MaxPages int

	// Concurrency is the maximum number of fetches in flight.
	Concurrency int

	// RelevanceThreshold is the inclusive gate a page must pass to be harvested.
	RelevanceThreshold float64

	// EvaluationThreshold is the mean score below which one refinement pass runs.
	EvaluationThreshold float64

	// ThresholdStep, ThresholdFloor, DepthStep and PagesStep control how
	// a refinement relaxes the crawl parameters.
	ThresholdStep  float64
	ThresholdFloor float64
	DepthStep      int
	PagesStep      int

	// Granularity is the text unit extracted from pages: paragraph or sentence.
	Granularity string

	// Readability isolates the main article before extraction.
	Readability bool

	// Oracle selects the relevance oracle: openai or local.
	Oracle string

	// Scorer selects how final documents are scored: embedding or llm.
	Scorer string

	// APIKey is the OpenAI API key. It is usually read from OPENAI_API_KEY.
	APIKey string

	// OpenAIBaseURL overrides the OpenAI API endpoint.
	OpenAIBaseURL string

	// EmbeddingModel is the OpenAI embedding model name.
	EmbeddingModel string

	// ChatModel is the OpenAI chat model used by the llm scorer.
	ChatModel string

	// CacheSize is the number of embeddings cached in memory.
	CacheSize int

	// AllowExternal lets the crawl leave the seed host.
	AllowExternal bool

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// Proxy is an optional SOCKS5 proxy address ("host:port") for all fetches.
	Proxy string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches the log output to JSON.
	JSONLog bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the file configuration, including per-site overrides.
	SiteConfigs *File

	// JSONReport selects the full JSON report. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// TextReport selects the plain text summary. Without any of the three
	// report flags the ranked results are printed as a JSON array.
	TextReport bool

	// ReportFile is the output file path for the report; stdout when empty.
	ReportFile string

	// OutDir, when set, receives one document_N.json file per ranked result.
	OutDir string

	// Top limits the number of results printed. 0 prints all of them.
	Top int

	// DBDir is the directory of the result history database.
	DBDir string

	// SaveToDB stores every run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:            DefaultMaxDepth,
		MaxPages:            DefaultMaxPages,
		Concurrency:         DefaultConcurrency,
		RelevanceThreshold:  DefaultRelevanceThreshold,
		EvaluationThreshold: DefaultEvaluationThreshold,
		ThresholdStep:       DefaultThresholdStep,
		ThresholdFloor:      DefaultThresholdFloor,
		DepthStep:           DefaultDepthStep,
		PagesStep:           DefaultPagesStep,
		Granularity:         GranularityParagraph,
		Oracle:              OracleOpenAI,
		Scorer:              ScorerEmbedding,
		CacheSize:           DefaultCacheSize,
		Timeout:             DefaultTimeout,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		BatchSize:           DefaultBatchSize,
	}
}

// CrawlConfig returns the crawl parameters of the first pass.
func (c *Config) CrawlConfig() model.CrawlConfig {
	return model.CrawlConfig{
		MaxDepth:            c.MaxDepth,
		MaxPages:            c.MaxPages,
		Concurrency:         c.Concurrency,
		RelevanceThreshold:  c.RelevanceThreshold,
		EvaluationThreshold: c.EvaluationThreshold,
	}
}

// XDGDataDir returns the XDG data directory for rufus.
// On Linux: ~/.local/share/rufus
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for rufus.
// On Linux: ~/.config/rufus
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for rufus.
// On Linux: ~/.cache/rufus
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for _, seed := range c.Seeds {
		if err := ValidateSeed(seed); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Instruction) == "" {
		return ErrNoInstruction
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	for _, th := range []float64{c.RelevanceThreshold, c.EvaluationThreshold, c.ThresholdFloor} {
		if th < 0 || th > 1 {
			return ErrInvalidThreshold
		}
	}
	if c.ThresholdStep < 0 || c.DepthStep < 0 || c.PagesStep < 0 {
		return ErrInvalidRefineStep
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.TextReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	switch c.Granularity {
	case GranularityParagraph, GranularitySentence:
	default:
		return ErrInvalidGranularity
	}

	switch c.Oracle {
	case OracleOpenAI, OracleLocal:
	default:
		return ErrUnknownOracle
	}

	switch c.Scorer {
	case ScorerEmbedding, ScorerLLM:
	default:
		return ErrUnknownScorer
	}

	return nil
}

// ValidateSeed reports whether seed is an absolute http or https URL.
func ValidateSeed(seed string) error {
	u, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSeed, seed)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidSeed, seed)
	}
	return nil
}
