package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/rufus/internal/config"
	"github.com/nao1215/rufus/internal/crawler"
	"github.com/nao1215/rufus/internal/database"
	"github.com/nao1215/rufus/internal/evaluate"
	"github.com/nao1215/rufus/internal/extract"
	"github.com/nao1215/rufus/internal/feedback"
	"github.com/nao1215/rufus/internal/model"
	"github.com/nao1215/rufus/internal/oracle"
	"github.com/nao1215/rufus/internal/pipeline"
	"github.com/nao1215/rufus/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl websites towards an instruction",
		Long: `Crawl starts at each seed URL and follows links in order of how relevant
their anchor text is to the instruction. Pages whose text scores at least the
relevance threshold are kept, split into paragraphs or sentences and ranked.

When the kept pages score below the evaluation threshold on average, the crawl
is repeated once with a lower relevance threshold, a larger depth and a larger
page budget.

Examples:
  # Crawl one site with the OpenAI oracle (OPENAI_API_KEY from env or .env)
  rufus crawl https://example.com -i "find pricing plans"

  # Crawl offline with the local oracle and print a Markdown report
  rufus crawl https://example.com -i "opening hours" --oracle local -m

  # Store one JSON file per ranked result
  rufus crawl https://example.com -i "activities in the city" --out-dir output_documents

  # Crawl several sites, two at a time
  rufus crawl https://a.example https://b.example -i "contact email" -b 2

Configuration file (.rufus.yaml) example:
  crawl:
    maxDepth: 5
    relevanceThreshold: 0.2
  sites:
    docs.example.com:
      headers:
        Authorization: "Bearer token"
      ignorePatterns:
        - "/blog/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Goal
	cmd.Flags().StringP("instruction", "i", "",
		"Natural-language goal of the crawl (required)")

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from the seed")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of URLs visited per pass")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of concurrent fetches")
	cmd.Flags().Float64P("relevance-threshold", "r", config.DefaultRelevanceThreshold,
		"Score a page needs to be kept (inclusive)")
	cmd.Flags().Float64P("evaluation-threshold", "e", config.DefaultEvaluationThreshold,
		"Mean score below which one refined crawl runs")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Bool("external", false,
		"Follow links that leave the seed host")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port) used for every request")

	// Extraction and scoring
	cmd.Flags().StringP("granularity", "g", config.GranularityParagraph,
		"Extracted text unit: paragraph or sentence")
	cmd.Flags().Bool("readability", false,
		"Isolate the main article of each page before extraction")
	cmd.Flags().String("oracle", config.OracleOpenAI,
		"Relevance oracle: openai or local")
	cmd.Flags().String("scorer", config.ScorerEmbedding,
		"Final document scorer: embedding or llm")
	cmd.Flags().String("env-file", ".env",
		"File with KEY=VALUE pairs loaded into the environment")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .rufus.yaml in current directory, XDG config or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the full JSON report")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown report")
	cmd.Flags().Bool("text", false,
		"Output a plain text report")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("out-dir", "",
		"Directory receiving one document_N.json file per ranked result")
	cmd.Flags().Int("top", 0,
		"Print only the N best results (0 prints all)")
	cmd.Flags().Bool("no-db", false,
		"Do not store the run in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose, cfg.JSONLog)
	slog.SetDefault(logger)

	// Handle interrupt signals; a cancelled crawl still reports what it harvested.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from the defaults, the configuration file
// and the flags the user set, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(envFile); err != nil {
		return nil, err
	}
	cfg.APIKey = config.APIKeyFromEnv()

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	// Flags override the file only when the user set them.
	intFlags := map[string]*int{
		"depth":       &cfg.MaxDepth,
		"max-pages":   &cfg.MaxPages,
		"concurrency": &cfg.Concurrency,
		"batch":       &cfg.BatchSize,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetInt(name); err != nil {
			return nil, err
		}
	}

	floatFlags := map[string]*float64{
		"relevance-threshold":  &cfg.RelevanceThreshold,
		"evaluation-threshold": &cfg.EvaluationThreshold,
	}
	for name, dst := range floatFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetFloat64(name); err != nil {
			return nil, err
		}
	}

	stringFlags := map[string]*string{
		"granularity": &cfg.Granularity,
		"oracle":      &cfg.Oracle,
		"scorer":      &cfg.Scorer,
		"proxy":       &cfg.Proxy,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("external") {
		if cfg.AllowExternal, err = flags.GetBool("external"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("readability") {
		if cfg.Readability, err = flags.GetBool("readability"); err != nil {
			return nil, err
		}
	}

	if cfg.Instruction, err = flags.GetString("instruction"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.TextReport, err = flags.GetBool("text"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.OutDir, err = flags.GetString("out-dir"); err != nil {
		return nil, err
	}
	if cfg.Top, err = flags.GetInt("top"); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.JSONLog = getJSONLogFlag(cmd)

	cfg.Seeds = args

	return cfg, nil
}

// components are the parts shared by every seed of one invocation.
type components struct {
	oracle    *oracle.Oracle
	extractor *extract.Extractor
	evaluator *evaluate.Evaluator
	fetcher   *crawler.HTTPFetcher
	policy    feedback.Policy
}

// newComponents builds the oracle, extractor, evaluator and fetcher from cfg.
func newComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	var client *oracle.Client
	if cfg.Oracle == config.OracleOpenAI || cfg.Scorer == config.ScorerLLM {
		var err error
		client, err = oracle.NewClient(cfg.APIKey,
			oracle.WithBaseURL(cfg.OpenAIBaseURL),
			oracle.WithEmbeddingModel(cfg.EmbeddingModel, 0),
			oracle.WithChatModel(cfg.ChatModel),
			oracle.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
	}

	var embedder oracle.Embedder = oracle.NewHashEmbedder(0)
	if cfg.Oracle == config.OracleOpenAI {
		embedder = client
	}
	relevance := oracle.New(oracle.NewCachedEmbedder(embedder, cfg.CacheSize))

	var scorer evaluate.Scorer = evaluate.NewEmbeddingScorer(relevance)
	if cfg.Scorer == config.ScorerLLM {
		scorer = evaluate.NewLLMScorer(client)
	}

	granularity, err := extract.ParseGranularity(cfg.Granularity)
	if err != nil {
		return nil, err
	}

	httpClient, err := crawler.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	return &components{
		oracle: relevance,
		extractor: extract.New(
			extract.WithGranularity(granularity),
			extract.WithReadability(cfg.Readability),
			extract.WithLogger(logger),
		),
		evaluator: evaluate.New(scorer,
			evaluate.WithConcurrency(cfg.Concurrency),
			evaluate.WithLogger(logger),
		),
		fetcher: crawler.NewHTTPFetcher(httpClient,
			crawler.WithTimeout(cfg.Timeout),
			crawler.WithUserAgent(cfg.UserAgent),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
			crawler.WithSiteHeaders(siteHeaders(cfg)),
		),
		policy: feedback.Policy{
			ThresholdStep:  cfg.ThresholdStep,
			ThresholdFloor: cfg.ThresholdFloor,
			DepthStep:      cfg.DepthStep,
			PagesStep:      cfg.PagesStep,
		},
	}, nil
}

// siteHeaders returns the extra request headers configured for a host.
func siteHeaders(cfg *config.Config) func(host string) http.Header {
	return func(host string) http.Header {
		if cfg.SiteConfigs == nil {
			return nil
		}
		site := cfg.SiteConfigs.GetSiteConfig(host)
		if len(site.Headers) == 0 && site.Cookie == "" {
			return nil
		}
		h := make(http.Header, len(site.Headers)+1)
		for k, v := range site.Headers {
			h.Set(k, v)
		}
		if site.Cookie != "" {
			h.Set("Cookie", site.Cookie)
		}
		return h
	}
}

// getSiteConfig returns the configuration for the host of seed.
func getSiteConfig(cfg *config.Config, seed string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	u, err := url.Parse(seed)
	if err != nil {
		return cfg.SiteConfigs.Defaults
	}
	return cfg.SiteConfigs.GetSiteConfig(u.Hostname())
}

// deps builds the per-seed pipeline dependencies. Every call returns a new
// Spider so that concurrent seeds never share crawl state.
func (c *components) deps(cfg *config.Config, site config.SiteConfig, logger *slog.Logger) pipeline.Deps {
	spider := crawler.NewSpider(c.fetcher, c.oracle,
		crawler.WithLogger(logger),
		crawler.WithExternalLinks(cfg.AllowExternal),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
	)
	return pipeline.Deps{
		Crawler:   spider,
		Extractor: c.extractor,
		Evaluator: c.evaluator,
		Policy:    c.policy,
		Logger:    logger,
	}
}

// crawlConfigFor returns the first-pass parameters for seed, honoring a
// per-site depth override.
func crawlConfigFor(cfg *config.Config, site config.SiteConfig) model.CrawlConfig {
	cc := cfg.CrawlConfig()
	if site.Depth > 0 {
		cc.MaxDepth = site.Depth
	}
	return cc
}

// runCrawl crawls every seed and writes the reports to stdout or the report file.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"oracle", cfg.Oracle,
		"scorer", cfg.Scorer,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	comps, err := newComponents(cfg, logger)
	if err != nil {
		return err
	}

	// Open database connection if saving is enabled
	var db *database.ResultDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	out := &reportOutput{cfg: cfg, w: output, db: db, logger: logger}

	if len(cfg.Seeds) > 1 && cfg.BatchSize > 1 {
		return runBatchCrawl(ctx, cfg, comps, out, logger)
	}
	return runSequentialCrawl(ctx, cfg, comps, out, logger)
}

// runSequentialCrawl crawls seeds one at a time with their site configuration.
func runSequentialCrawl(ctx context.Context, cfg *config.Config, comps *components, out *reportOutput, logger *slog.Logger) error {
	var errs []error
	for i, seed := range cfg.Seeds {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		site := getSiteConfig(cfg, seed)
		p := pipeline.Build(comps.deps(cfg, site, logger))
		rep := model.NewCrawlReport(seed, cfg.Instruction, crawlConfigFor(cfg, site))

		startTime := time.Now()
		err := p.Execute(ctx, rep)
		logger.Info("crawl finished",
			"seed", seed,
			"results", len(rep.Results),
			"elapsed", time.Since(startTime).Round(time.Millisecond),
		)
		if err != nil {
			logger.Error("crawl failed", "seed", seed, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", seed, err))
		}

		if err := out.emit(ctx, rep, i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runBatchCrawl crawls several seeds concurrently using BatchProcessor.
func runBatchCrawl(ctx context.Context, cfg *config.Config, comps *components, out *reportOutput, logger *slog.Logger) error {
	// The batch pipeline factory does not know its seed, so per-site
	// patterns and depth cannot be applied. Headers still are, per host.
	if cfg.SiteConfigs != nil && len(cfg.SiteConfigs.Sites) > 0 {
		logger.Warn("batch crawling uses the default site patterns and depth; use --batch 1 to apply per-site settings",
			"siteCount", len(cfg.SiteConfigs.Sites))
	}

	var defaults config.SiteConfig
	if cfg.SiteConfigs != nil {
		defaults = cfg.SiteConfigs.Defaults
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.Build(comps.deps(cfg, defaults, logger))
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	var errs []error
	err := bp.ProcessBatchWithCallback(ctx, cfg.Seeds, cfg.Instruction, crawlConfigFor(cfg, defaults),
		func(rep *model.CrawlReport, index int) {
			mu.Lock()
			defer mu.Unlock()

			if rep.Error != nil {
				errs = append(errs, fmt.Errorf("%s: %w", rep.Seed, rep.Error))
			}
			if err := out.emit(ctx, rep, index); err != nil {
				errs = append(errs, err)
			}
		})
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// reportOutput writes finished reports and stores them in the history.
type reportOutput struct {
	cfg    *config.Config
	w      io.Writer
	db     *database.ResultDB
	logger *slog.Logger
}

// emit writes rep in the selected format, stores its documents and saves it.
// index is the position of the seed on the command line.
func (o *reportOutput) emit(ctx context.Context, rep *model.CrawlReport, index int) error {
	// Save first so that the history keeps every result, not only the top ones.
	if o.db != nil {
		// The run is stored even when the crawl was cancelled.
		id, err := o.db.SaveRun(context.WithoutCancel(ctx), rep)
		if err != nil {
			o.logger.Error("failed to save run", "seed", rep.Seed, "error", err)
		} else {
			o.logger.Info("run saved to database", "seed", rep.Seed, "id", id)
		}
	}

	view := *rep
	view.Results = report.Top(rep.Results, o.cfg.Top)

	if o.cfg.OutDir != "" {
		dir := o.cfg.OutDir
		if len(o.cfg.Seeds) > 1 {
			dir = filepath.Join(dir, fmt.Sprintf("seed_%d", index+1))
		}
		paths, err := report.WriteDocuments(dir, view.Results)
		if err != nil {
			return fmt.Errorf("failed to store documents for %s: %w", rep.Seed, err)
		}
		o.logger.Info("documents stored", "dir", dir, "count", len(paths))
	}

	if _, err := o.writer().Write(&view); err != nil {
		return fmt.Errorf("failed to write report for %s: %w", rep.Seed, err)
	}
	return nil
}

// writer returns the report writer for the selected format.
func (o *reportOutput) writer() report.Writer {
	switch {
	case o.cfg.JSONReport:
		return report.NewFullJSONWriter(o.w, getVersion(), report.WithPrettyPrint())
	case o.cfg.MarkdownReport:
		return report.NewMarkdownWriter(o.w)
	case o.cfg.TextReport:
		return report.NewSimpleWriter(o.w, report.WithVerbose(o.cfg.Verbose))
	default:
		return report.NewJSONWriter(o.w, report.WithPrettyPrint())
	}
}

// openOutput returns the report destination: the file at path, or stdout
// when path is empty. The returned function closes the file.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
