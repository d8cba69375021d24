package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ramkansal/phonegrabber/internal/config"
	"github.com/ramkansal/phonegrabber/internal/extractor"
	"github.com/ramkansal/phonegrabber/internal/fetcher"
	"github.com/ramkansal/phonegrabber/internal/grabber"
	"github.com/ramkansal/phonegrabber/internal/output"
	"github.com/ramkansal/phonegrabber/pkg/logger"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoResults = errors.New("there is no results from parser")

// flags holds the parsed command line options. They override config values
// only when set explicitly.
type flags struct {
	configPath string

	concurrency int
	timeout     time.Duration
	userAgent   string
	proxy       string
	headers     []string
	fetcher     string

	lenient  bool
	textOnly bool
	validate bool

	format  string
	noColor bool
	verbose bool
}

// NewRootCmd creates the phonegrabber command.
func NewRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "phonegrabber [flags] <page_url>...",
		Short: "Grab Russian phone numbers from web pages",
		Long: `phonegrabber fetches every page concurrently, finds Russian phone numbers
in the page source and prints them in 8KKKNNNNNNN format.

Inputs that do not start with http://, https:// or // are skipped.`,
		Args:          cobra.ArbitraryArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrab(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "path to YAML configuration file")
	fl.IntVarP(&f.concurrency, "concurrency", "c", grabber.DefaultConcurrency, "pages fetched at once, 0 for no limit")
	fl.DurationVarP(&f.timeout, "timeout", "t", 30*time.Second, "per-request timeout")
	fl.StringVar(&f.userAgent, "user-agent", "", "custom user-agent string")
	fl.StringVar(&f.proxy, "proxy", "", "http/socks5 proxy to use")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, `custom header in "Key: Value" format (repeatable)`)
	fl.StringVarP(&f.fetcher, "fetcher", "f", "http", "fetcher mode: http, browser")
	fl.BoolVar(&f.lenient, "lenient", false, "do not require a separator in front of a phone")
	fl.BoolVar(&f.textOnly, "text-only", false, "scan visible page text instead of raw HTML")
	fl.BoolVar(&f.validate, "validate", false, "keep only numbers valid for the Russian numbering plan")
	fl.StringVarP(&f.format, "format", "o", "text", "output format: text, json")
	fl.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func runGrab(cmd *cobra.Command, pages []string, f *flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Setup(cfg.Environment, f.verbose)
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ext := newExtractor(cfg)
	logger.Debug(ctx, "extractors configured", zap.Strings("extractors", ext.Names()))

	g := grabber.New(
		grabber.WithFetcherFactory(fetcherFactory(ctx, cfg, f.headers...)),
		grabber.WithExtractor(ext),
		grabber.WithConcurrency(cfg.Fetcher.Concurrency),
	)

	summary, err := g.Run(ctx, pages)
	switch {
	case errors.Is(err, grabber.ErrEmptyInput), errors.Is(err, grabber.ErrNoGoodURLs):
		return fmt.Errorf("%w: %w", errNoResults, err)
	case err != nil:
		return err
	}

	if err := newWriter(cmd.OutOrStdout(), cfg).Write(summary); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	if len(summary.Phones) == 0 {
		return errNoResults
	}

	return nil
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("concurrency") {
		cfg.Fetcher.Concurrency = f.concurrency
	}
	if fl.Changed("timeout") {
		cfg.Fetcher.Timeout = f.timeout
	}
	if fl.Changed("user-agent") {
		cfg.Fetcher.UserAgent = f.userAgent
	}
	if fl.Changed("proxy") {
		cfg.Fetcher.Proxy = f.proxy
	}
	if fl.Changed("fetcher") {
		cfg.Fetcher.Mode = f.fetcher
	}
	if fl.Changed("lenient") {
		cfg.Extract.Lenient = f.lenient
	}
	if fl.Changed("text-only") {
		cfg.Extract.TextOnly = f.textOnly
	}
	if fl.Changed("validate") {
		cfg.Extract.Validate = f.validate
	}
	if fl.Changed("format") {
		cfg.Output.Format = f.format
	}
	if fl.Changed("no-color") {
		cfg.Output.NoColor = f.noColor
	}
}

// requestHeaders merges configured headers with --header values, the latter
// sent last so they win on duplicate keys.
func requestHeaders(cfg *config.Config, extra []string) []string {
	keys := make([]string, 0, len(cfg.Fetcher.Headers))
	for k := range cfg.Fetcher.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]string, 0, len(keys)+len(extra))
	for _, k := range keys {
		headers = append(headers, k+": "+cfg.Fetcher.Headers[k])
	}
	return append(headers, extra...)
}

func fetcherFactory(ctx context.Context, cfg *config.Config, extraHeaders ...string) grabber.FetcherFactory {
	httpCfg := fetcher.HTTPFetcherConfig{
		UserAgent:       cfg.Fetcher.UserAgent,
		Timeout:         cfg.Fetcher.Timeout,
		MaxResponseSize: cfg.Fetcher.MaxBodySize,
		Proxy:           cfg.Fetcher.Proxy,
		CustomHeaders:   requestHeaders(cfg, extraHeaders),
	}
	if cfg.Fetcher.Concurrency > 0 {
		httpCfg.MaxIdleConnsPerHost = cfg.Fetcher.Concurrency
	}
	httpFactory := grabber.DefaultFetcherFactory(httpCfg)

	if cfg.Fetcher.Mode != "browser" {
		return httpFactory
	}

	return func() (plugin.Fetcher, error) {
		bf, err := fetcher.NewBrowserFetcher(fetcher.BrowserFetcherConfig{
			Timeout:     cfg.Fetcher.BrowserTimeout,
			PageTimeout: cfg.Fetcher.PageTimeout,
			UserAgent:   cfg.Fetcher.UserAgent,
			Bin:         cfg.Fetcher.BrowserBin,
		})
		if err != nil {
			logger.Warn(ctx, "browser unavailable, falling back to http", zap.Error(err))
			return httpFactory()
		}
		return bf, nil
	}
}

func newExtractor(cfg *config.Config) *extractor.Chain {
	opts := []extractor.Option{extractor.WithValidation(cfg.Extract.Validate)}
	if cfg.Extract.Lenient {
		opts = append(opts, extractor.WithVariant(extractor.VariantLenient))
	}
	if cfg.Extract.TextOnly {
		opts = append(opts, extractor.WithSource(extractor.SourceText))
	}

	chain := extractor.NewChain(extractor.NewPhonesExtractor(opts...))
	if cfg.Extract.TextOnly {
		chain.Register(extractor.NewTelLinksExtractor(cfg.Extract.Validate))
	}
	return chain
}

func newWriter(w io.Writer, cfg *config.Config) plugin.OutputWriter {
	if cfg.Output.Format == "json" {
		return output.NewJSONWriter(w)
	}
	return output.NewTextWriter(w, cfg.Output.NoColor || !enableANSI())
}
