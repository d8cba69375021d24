// Package grabber fetches pages concurrently and collects the phone numbers
// found on them.
package grabber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ramkansal/phonegrabber/internal/fetcher"
	"github.com/ramkansal/phonegrabber/pkg/logger"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyInput is returned when no page URLs were given at all.
	ErrEmptyInput = errors.New("empty/wrong input")
	// ErrNoGoodURLs is returned when none of the inputs is a fetchable URL.
	ErrNoGoodURLs = errors.New("there is no good pages urls")
)

// Grabber is the engine that classifies page URLs, fetches them and unions
// the phones extracted from every successful page.
type Grabber struct {
	newFetcher  FetcherFactory
	extractor   plugin.Extractor
	concurrency int
}

// New creates a Grabber. Without options it uses a default HTTP fetcher, the
// strict phone extractor and DefaultConcurrency.
func New(opts ...Option) *Grabber {
	g := &Grabber{
		newFetcher:  DefaultFetcherFactory(fetcher.HTTPFetcherConfig{}),
		extractor:   defaultExtractor(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grab returns the phones found on pages. ErrEmptyInput and ErrNoGoodURLs
// signal that there is no result; an empty set with a nil error means pages
// were processed but yielded nothing.
func (g *Grabber) Grab(ctx context.Context, pages []string) (plugin.PhoneSet, error) {
	summary, err := g.Run(ctx, pages)
	if err != nil {
		return nil, err
	}
	return summary.Phones, nil
}

// Run is Grab with run bookkeeping.
func (g *Grabber) Run(ctx context.Context, pages []string) (*plugin.Summary, error) {
	ctx = logger.WithFields(ctx, zap.String("run_id", uuid.NewString()))

	if len(pages) == 0 {
		logger.Error(ctx, "empty/wrong input")
		return nil, ErrEmptyInput
	}

	cls := Classify(pages)
	if len(cls.Rejected) > 0 {
		logger.Info(ctx, "bad urls are skipped", zap.Strings("urls", cls.Rejected))
	}
	if len(cls.Accepted) == 0 {
		logger.Error(ctx, "there is no good pages urls")
		return nil, ErrNoGoodURLs
	}

	f, err := g.newFetcher()
	if err != nil {
		return nil, fmt.Errorf("could not create fetcher: %w", err)
	}
	defer closeFetcher(ctx, f)

	logger.Info(ctx, "loading urls", zap.Int("count", len(cls.Accepted)), zap.String("fetcher", f.Name()))

	start := time.Now()
	results := g.fetchAll(ctx, f, cls.Accepted)

	summary := &plugin.Summary{
		Phones:    Union(results),
		Accepted:  cls.Accepted,
		Rejected:  cls.Rejected,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	for _, r := range results {
		if r.OK() {
			summary.PagesFetched++
		} else {
			summary.PagesFailed++
		}
	}

	logger.Info(ctx, "all done",
		zap.Int("phones", len(summary.Phones)),
		zap.Int("pages_fetched", summary.PagesFetched),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Duration("elapsed", summary.Duration),
	)

	return summary, nil
}

// FetchAll fetches every URL with a fresh fetcher and unions the phones of
// the pages that succeeded. A failing page never stops the others; if all of
// them fail the result is an empty set.
func (g *Grabber) FetchAll(ctx context.Context, pages []string) (plugin.PhoneSet, error) {
	f, err := g.newFetcher()
	if err != nil {
		return nil, fmt.Errorf("could not create fetcher: %w", err)
	}
	defer closeFetcher(ctx, f)

	return Union(g.fetchAll(ctx, f, pages)), nil
}

func (g *Grabber) fetchAll(ctx context.Context, f plugin.Fetcher, pages []string) []plugin.PageResult {
	results := make([]plugin.PageResult, len(pages))

	// Tasks never return an error, so one failing page cannot cancel the rest.
	var eg errgroup.Group
	if g.concurrency > 0 {
		eg.SetLimit(g.concurrency)
	}

	for i, page := range pages {
		eg.Go(func() error {
			results[i] = g.processPage(ctx, f, page)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

// processPage fetches a single page and extracts its phones.
func (g *Grabber) processPage(ctx context.Context, f plugin.Fetcher, pageURL string) plugin.PageResult {
	ctx = logger.WithFields(ctx, zap.String("url", pageURL))
	logger.Info(ctx, "processing page")

	page, err := f.Fetch(ctx, pageURL)
	if err != nil {
		if errors.Is(err, fetcher.ErrUnexpectedStatus) {
			logger.Warn(ctx, "incorrect server answer", zap.Int("status", statusOf(page)))
		} else {
			logger.Warn(ctx, "connection error", zap.Error(err))
		}
		return plugin.PageResult{URL: pageURL, Err: err}
	}

	phones, err := g.extractor.Extract(ctx, page)
	if err != nil {
		logger.Warn(ctx, "could not extract phones", zap.String("extractor", g.extractor.Name()), zap.Error(err))
		return plugin.PageResult{URL: pageURL, Err: err}
	}

	logger.Debug(ctx, "page processed", zap.Int("phones", len(phones)), zap.Duration("fetch", page.FetchDuration))
	return plugin.PageResult{URL: pageURL, Phones: phones}
}

// Union folds the phones of every successful result into one set. Failed
// results are skipped; no successes gives an empty set.
func Union(results []plugin.PageResult) plugin.PhoneSet {
	out := make(plugin.PhoneSet)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		out.Union(r.Phones)
	}
	return out
}

func closeFetcher(ctx context.Context, f plugin.Fetcher) {
	if err := f.Close(); err != nil {
		logger.Warn(ctx, "could not close fetcher", zap.String("fetcher", f.Name()), zap.Error(err))
	}
}

func statusOf(page *plugin.PageData) int {
	if page == nil {
		return 0
	}
	return page.StatusCode
}
