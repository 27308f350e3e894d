package config

import "maps"

// SiteConfig holds the configuration for a single host.
// This allows customizing crawl behavior per site.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global maximum depth for this site.
	// If zero, the global MaxDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// CrawlSection holds crawl defaults from the configuration file.
// Zero values leave the built-in default untouched.
type CrawlSection struct {
	MaxDepth            int     `yaml:"maxDepth,omitempty"`
	MaxPages            int     `yaml:"maxPages,omitempty"`
	Concurrency         int     `yaml:"concurrency,omitempty"`
	RelevanceThreshold  float64 `yaml:"relevanceThreshold,omitempty"`
	EvaluationThreshold float64 `yaml:"evaluationThreshold,omitempty"`
	Granularity         string  `yaml:"granularity,omitempty"`
	Readability         bool    `yaml:"readability,omitempty"`
	External            bool    `yaml:"external,omitempty"`
	UserAgent           string  `yaml:"userAgent,omitempty"`
	Proxy               string  `yaml:"proxy,omitempty"`
	Timeout             string  `yaml:"timeout,omitempty"`
}

// RefineSection holds the refinement step sizes.
type RefineSection struct {
	ThresholdStep  float64 `yaml:"thresholdStep,omitempty"`
	ThresholdFloor float64 `yaml:"thresholdFloor,omitempty"`
	DepthStep      int     `yaml:"depthStep,omitempty"`
	PagesStep      int     `yaml:"pagesStep,omitempty"`
}

// OracleSection selects and configures the relevance oracle.
type OracleSection struct {
	Name           string `yaml:"name,omitempty"`
	Scorer         string `yaml:"scorer,omitempty"`
	BaseURL        string `yaml:"baseURL,omitempty"`
	EmbeddingModel string `yaml:"embeddingModel,omitempty"`
	ChatModel      string `yaml:"chatModel,omitempty"`
	CacheSize      int    `yaml:"cacheSize,omitempty"`
}

// File represents the structure of the .rufus.yaml configuration file.
type File struct {
	// Crawl overrides the built-in crawl defaults.
	Crawl CrawlSection `yaml:"crawl,omitempty"`

	// Refine overrides the refinement step sizes.
	Refine RefineSection `yaml:"refine,omitempty"`

	// Oracle selects the relevance oracle and evaluation scorer.
	Oracle OracleSection `yaml:"oracle,omitempty"`

	// Sites maps host names to their site-specific configurations.
	// Keys are the host without scheme (e.g., "docs.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			maps.Copy(result.Headers, siteConfig.Headers)
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}

// Apply copies the values set in the file onto cfg.
// CLI flags are applied afterwards and win over the file.
func (cf *File) Apply(cfg *Config) error {
	c := cf.Crawl
	if c.MaxDepth != 0 {
		cfg.MaxDepth = c.MaxDepth
	}
	if c.MaxPages != 0 {
		cfg.MaxPages = c.MaxPages
	}
	if c.Concurrency != 0 {
		cfg.Concurrency = c.Concurrency
	}
	if c.RelevanceThreshold != 0 {
		cfg.RelevanceThreshold = c.RelevanceThreshold
	}
	if c.EvaluationThreshold != 0 {
		cfg.EvaluationThreshold = c.EvaluationThreshold
	}
	if c.Granularity != "" {
		cfg.Granularity = c.Granularity
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	if c.Proxy != "" {
		cfg.Proxy = c.Proxy
	}
	if c.Timeout != "" {
		d, err := parseDuration(c.Timeout)
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}
	cfg.Readability = cfg.Readability || c.Readability
	cfg.AllowExternal = cfg.AllowExternal || c.External

	r := cf.Refine
	if r.ThresholdStep != 0 {
		cfg.ThresholdStep = r.ThresholdStep
	}
	if r.ThresholdFloor != 0 {
		cfg.ThresholdFloor = r.ThresholdFloor
	}
	if r.DepthStep != 0 {
		cfg.DepthStep = r.DepthStep
	}
	if r.PagesStep != 0 {
		cfg.PagesStep = r.PagesStep
	}

	o := cf.Oracle
	if o.Name != "" {
		cfg.Oracle = o.Name
	}
	if o.Scorer != "" {
		cfg.Scorer = o.Scorer
	}
	if o.BaseURL != "" {
		cfg.OpenAIBaseURL = o.BaseURL
	}
	if o.EmbeddingModel != "" {
		cfg.EmbeddingModel = o.EmbeddingModel
	}
	if o.ChatModel != "" {
		cfg.ChatModel = o.ChatModel
	}
	if o.CacheSize != 0 {
		cfg.CacheSize = o.CacheSize
	}

	cfg.SiteConfigs = cf
	return nil
}
