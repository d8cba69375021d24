package extractor

import (
	"context"

	"github.com/ramkansal/phonegrabber/pkg/logger"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
	"go.uber.org/zap"
)

// Chain runs several extractors against a page and unions their phones.
type Chain struct {
	extractors []plugin.Extractor
}

// NewChain creates a chain of the given extractors.
func NewChain(extractors ...plugin.Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Register appends an extractor to the chain.
func (c *Chain) Register(ext plugin.Extractor) {
	c.extractors = append(c.extractors, ext)
}

func (c *Chain) Name() string { return "chain" }

// Extract returns the union of all extractor results. A failing extractor is
// logged and skipped; the page fails only when every extractor does.
func (c *Chain) Extract(ctx context.Context, page *plugin.PageData) (plugin.PhoneSet, error) {
	phones := plugin.PhoneSet{}
	var firstErr error
	failed := 0
	for _, ext := range c.extractors {
		found, err := ext.Extract(ctx, page)
		if err != nil {
			logger.Warn(ctx, "extractor failed", zap.String("extractor", ext.Name()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		phones.Union(found)
	}
	if len(c.extractors) > 0 && failed == len(c.extractors) {
		return nil, firstErr
	}
	return phones, nil
}

// Names returns the names of the chained extractors.
func (c *Chain) Names() []string {
	names := make([]string, len(c.extractors))
	for i, ext := range c.extractors {
		names[i] = ext.Name()
	}
	return names
}
