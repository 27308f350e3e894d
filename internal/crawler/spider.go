package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/rufus/internal/model"
)

// ErrInvalidConfig is returned when a pass is started with a configuration
// that cannot make progress.
var ErrInvalidConfig = errors.New("invalid crawl configuration")

// RelevanceOracle scores how well text matches an instruction.
// Scores are in [0,1]; higher is more relevant.
type RelevanceOracle interface {
	Relevance(ctx context.Context, text, instruction string) (float64, error)
}

// Spider runs one crawl pass at a time.
//
// A pass fetches pages in waves of at most Concurrency targets taken from
// the Frontier in priority order and waits for the whole wave before taking
// the next one. Every fetched page is scored against the instruction; pages
// reaching the relevance threshold are harvested. Links are enqueued
// whatever the page scored, prioritized by the relevance of their anchor
// text.
type Spider struct {
	fetcher Fetcher
	oracle  RelevanceOracle
	logger  *slog.Logger

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	followPatterns []string

	// allowExternal lets links leave the seed host.
	allowExternal bool

	frontier *Frontier

	// mutex protects harvested and stats.
	mutex     sync.Mutex
	harvested []model.HarvestedPage
	stats     model.PassStats
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithExternalLinks lets the crawl follow links to other hosts.
func WithExternalLinks(allow bool) SpiderOption {
	return func(s *Spider) {
		s.allowExternal = allow
	}
}

// NewSpider creates a Spider that fetches with fetcher and scores with oracle.
func NewSpider(fetcher Fetcher, oracle RelevanceOracle, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		oracle:    oracle,
		logger:    slog.Default(),
		frontier:  NewFrontier(),
		harvested: make([]model.HarvestedPage, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawl runs one pass from seed and returns the harvested pages.
//
// The Spider is Reset first, so each call starts from an empty frontier.
// At most cfg.MaxPages URLs are dequeued. When ctx is cancelled the current
// wave drains, the pages harvested so far are returned and the error wraps
// ctx.Err().
func (s *Spider) Crawl(ctx context.Context, seed, instruction string, cfg model.CrawlConfig) ([]model.HarvestedPage, error) {
	seedURL, err := validateSeed(seed)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency < 1 || cfg.MaxPages < 1 || cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidConfig, cfg)
	}

	s.Reset()
	if s.frontier.Enqueue(seedURL.String(), 0, 0) {
		s.addStats(func(st *model.PassStats) { st.Enqueued++ })
	}

	dequeued := 0
	for dequeued < cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return s.Harvested(), fmt.Errorf("crawl interrupted: %w", err)
		}

		wave := make([]model.CrawlTarget, 0, cfg.Concurrency)
		for len(wave) < cfg.Concurrency && dequeued < cfg.MaxPages {
			target, ok := s.frontier.Dequeue()
			if !ok {
				break
			}
			wave = append(wave, target)
			dequeued++
		}
		if len(wave) == 0 {
			break
		}
		s.addStats(func(st *model.PassStats) { st.Dequeued += len(wave) })

		var g errgroup.Group
		g.SetLimit(cfg.Concurrency)
		for _, target := range wave {
			g.Go(func() error {
				s.fetchAndProcess(ctx, target, seedURL.Host, instruction, cfg)
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return s.Harvested(), fmt.Errorf("crawl interrupted: %w", err)
	}

	stats := s.Stats()
	s.logger.Info("crawl pass finished",
		"seed", seed,
		"dequeued", stats.Dequeued,
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"harvested", stats.Harvested,
		"enqueued", stats.Enqueued,
	)
	return s.Harvested(), nil
}

// fetchAndProcess fetches one target, gates it on relevance and enqueues its links.
func (s *Spider) fetchAndProcess(ctx context.Context, target model.CrawlTarget, seedHost, instruction string, cfg model.CrawlConfig) {
	body, err := s.fetcher.Fetch(ctx, target.URL)
	if err != nil {
		s.logger.Warn("failed to fetch page", "url", target.URL, "error", err)
		s.addStats(func(st *model.PassStats) { st.Failed++ })
		return
	}
	s.addStats(func(st *model.PassStats) { st.Fetched++ })

	result := &ParseResult{}
	if parser, err := NewParser(target.URL); err == nil {
		if parsed, err := parser.Parse(strings.NewReader(body)); err == nil {
			result = parsed
		} else {
			s.logger.Warn("failed to parse page", "url", target.URL, "error", err)
		}
	}

	score, err := s.oracle.Relevance(ctx, result.Text, instruction)
	if err != nil {
		s.logger.Warn("relevance oracle failed, scoring page 0", "url", target.URL, "error", err)
		score = 0
	}
	if score >= cfg.RelevanceThreshold {
		s.mutex.Lock()
		s.harvested = append(s.harvested, model.HarvestedPage{
			URL:        target.URL,
			RawContent: body,
			Relevance:  score,
			Depth:      target.Depth,
		})
		s.stats.Harvested++
		s.mutex.Unlock()
		s.logger.Debug("page harvested", "url", target.URL, "score", score)
	}

	next := target.Depth + 1
	if next > cfg.MaxDepth {
		return
	}
	for _, link := range result.Links {
		if !s.inScope(seedHost, link.URL) || s.frontier.Seen(link.URL) {
			continue
		}
		priority := s.linkPriority(ctx, link.Text, instruction)
		if s.frontier.Enqueue(link.URL, priority, next) {
			s.addStats(func(st *model.PassStats) { st.Enqueued++ })
			s.logger.Debug("url enqueued", "url", link.URL, "priority", priority, "depth", next)
		}
	}
}

// linkPriority returns 1 - relevance(anchorText). Empty anchor text and
// oracle failures get the worst priority, 1.
func (s *Spider) linkPriority(ctx context.Context, anchorText, instruction string) float64 {
	if strings.TrimSpace(anchorText) == "" {
		return 1
	}
	score, err := s.oracle.Relevance(ctx, anchorText, instruction)
	if err != nil {
		s.logger.Warn("relevance oracle failed for anchor text", "text", anchorText, "error", err)
		return 1
	}
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	return 1 - score
}

// inScope applies the host restriction and the ignore/follow patterns.
func (s *Spider) inScope(seedHost, targetURL string) bool {
	if !s.allowExternal && !isSameHost(seedHost, targetURL) {
		return false
	}
	return s.shouldCrawl(targetURL)
}

func (s *Spider) addStats(fn func(*model.PassStats)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fn(&s.stats)
}

// Reset clears the frontier, the visited set, the harvested pages and the
// statistics, allowing the Spider to run another pass.
func (s *Spider) Reset() {
	s.frontier.Reset()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.harvested = make([]model.HarvestedPage, 0)
	s.stats = model.PassStats{}
}

// Harvested returns a copy of the pages harvested in the current pass.
func (s *Spider) Harvested() []model.HarvestedPage {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]model.HarvestedPage, len(s.harvested))
	copy(out, s.harvested)
	return out
}

// Stats returns the counters of the current (or last) pass.
func (s *Spider) Stats() model.PassStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// isSameHost checks if a URL points at the seed host.
func isSameHost(baseHost, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, baseHost)
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
