package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/ramkansal/phonegrabber/pkg/logger"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
	"go.uber.org/zap"
)

// ErrUnexpectedStatus is returned when a page answers with anything but 200 OK.
var ErrUnexpectedStatus = errors.New("incorrect server answer")

// HTTPFetcher uses Colly for plain HTTP page fetching. All fetches share one
// pooled *http.Client; Close releases its idle connections.
type HTTPFetcher struct {
	collector *colly.Collector
	client    *http.Client
	headers   []string
	maxBody   int
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher.
type HTTPFetcherConfig struct {
	UserAgent           string
	Timeout             time.Duration
	MaxResponseSize     int
	MaxIdleConnsPerHost int
	Proxy               string
	CustomHeaders       []string
	DisableRedirects    bool
}

// NewHTTPFetcher creates a new Colly-based HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	opts := []colly.CollectorOption{
		colly.Async(false), // concurrency is driven by the grabber
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.DetectCharset(),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	// Zero lifts colly's own 10 MiB default.
	opts = append(opts, colly.MaxBodySize(cfg.MaxResponseSize))

	c := colly.NewCollector(opts...)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: transport}
	c.SetClient(client)

	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	if cfg.DisableRedirects {
		c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		})
	}

	return &HTTPFetcher{
		collector: c,
		client:    client,
		headers:   cfg.CustomHeaders,
		maxBody:   cfg.MaxResponseSize,
	}, nil
}

func (f *HTTPFetcher) Name() string { return "http" }

// Fetch issues a single GET for targetURL. Only a 200 answer is a success.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.PageData, error) {
	start := time.Now()
	requestURL := Resolve(targetURL)

	page := &plugin.PageData{
		URL:         targetURL,
		FinalURL:    requestURL,
		FetcherUsed: f.Name(),
		FetchedAt:   start,
	}

	// Clones share the backend, and with it the pooled client, but not callbacks.
	c := f.collector.Clone()
	c.Context = ctx

	if len(f.headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for _, h := range f.headers {
				parts := strings.SplitN(h, ":", 2)
				if len(parts) == 2 {
					r.Headers.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
				}
			}
		})
	}

	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.Body = string(r.Body)
		page.ResponseSize = len(r.Body)
		page.FinalURL = r.Request.URL.String()
		page.ContentType = r.Headers.Get("Content-Type")

		page.Headers = make(http.Header)
		for key, values := range *r.Headers {
			for _, v := range values {
				page.Headers.Add(key, v)
			}
		}
	})

	err := c.Visit(requestURL)
	c.Wait()
	page.FetchDuration = time.Since(start)

	if err != nil {
		return page, fmt.Errorf("could not fetch page: %w", err)
	}
	if page.StatusCode != http.StatusOK {
		page.Body = ""
		return page, fmt.Errorf("%w: status %d", ErrUnexpectedStatus, page.StatusCode)
	}
	if f.maxBody > 0 && page.ResponseSize >= f.maxBody {
		logger.Warn(ctx, "response body truncated",
			zap.String("url", requestURL), zap.Int("limit", f.maxBody))
	}

	return page, nil
}

// Close releases the idle connections of the shared client.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Resolve turns a protocol-relative URL ("//host/path") into an https one.
// Other URLs are returned unchanged.
func Resolve(rawURL string) string {
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	return rawURL
}
