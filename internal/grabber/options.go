package grabber

import (
	"github.com/ramkansal/phonegrabber/internal/extractor"
	"github.com/ramkansal/phonegrabber/internal/fetcher"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
)

// DefaultConcurrency is the number of pages fetched at once unless
// WithConcurrency says otherwise.
const DefaultConcurrency = 16

// FetcherFactory builds the fetcher for one invocation. The grabber closes
// the fetcher when the invocation ends.
type FetcherFactory func() (plugin.Fetcher, error)

// Option configures a Grabber.
type Option func(*Grabber)

// WithFetcherFactory sets how the per-invocation fetcher is built.
func WithFetcherFactory(f FetcherFactory) Option {
	return func(g *Grabber) {
		if f != nil {
			g.newFetcher = f
		}
	}
}

// WithExtractor replaces the default phone extractor.
func WithExtractor(e plugin.Extractor) Option {
	return func(g *Grabber) {
		if e != nil {
			g.extractor = e
		}
	}
}

// WithConcurrency bounds the number of pages processed at once.
// Zero or a negative value removes the bound.
func WithConcurrency(n int) Option {
	return func(g *Grabber) {
		g.concurrency = n
	}
}

// DefaultFetcherFactory returns a factory for HTTP fetchers with the given
// configuration.
func DefaultFetcherFactory(cfg fetcher.HTTPFetcherConfig) FetcherFactory {
	return func() (plugin.Fetcher, error) {
		f, err := fetcher.NewHTTPFetcher(cfg)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

func defaultExtractor() plugin.Extractor {
	return extractor.NewPhonesExtractor()
}
