package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ramkansal/phonegrabber/pkg/logger"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
	"go.uber.org/zap"
)

// BrowserFetcher uses Rod (headless Chrome) to fetch JS-rendered pages.
type BrowserFetcher struct {
	browser     *rod.Browser
	timeout     time.Duration
	pageTimeout time.Duration
	userAgent   string
}

// BrowserFetcherConfig holds configuration for the browser fetcher.
type BrowserFetcherConfig struct {
	Timeout     time.Duration
	PageTimeout time.Duration
	UserAgent   string
	Bin         string
}

// NewBrowserFetcher launches a headless browser and connects to it.
func NewBrowserFetcher(cfg BrowserFetcherConfig) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("could not connect to browser: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pageTimeout := cfg.PageTimeout
	if pageTimeout == 0 {
		pageTimeout = 15 * time.Second
	}

	return &BrowserFetcher{
		browser:     browser,
		timeout:     timeout,
		pageTimeout: pageTimeout,
		userAgent:   cfg.UserAgent,
	}, nil
}

func (f *BrowserFetcher) Name() string { return "browser" }

// Fetch renders targetURL and returns the resulting HTML. The status of the
// main document response decides success, as with the HTTP fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.PageData, error) {
	start := time.Now()
	requestURL := Resolve(targetURL)

	page := &plugin.PageData{
		URL:         targetURL,
		FinalURL:    requestURL,
		FetcherUsed: f.Name(),
		FetchedAt:   start,
		Headers:     make(http.Header),
	}
	defer func() {
		page.FetchDuration = time.Since(start)
	}()

	rodPage, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return page, fmt.Errorf("could not open browser tab: %w", err)
	}
	defer rodPage.Close()

	pageCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rodPage = rodPage.Context(pageCtx).Timeout(f.timeout)

	if f.userAgent != "" {
		err := rodPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: f.userAgent,
		})
		if err != nil {
			logger.Warn(ctx, "could not override user agent", zap.Error(err))
		}
	}

	var (
		mu          sync.Mutex
		status      int
		contentType string
	)
	wait := rodPage.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		mu.Lock()
		status = e.Response.Status
		contentType = e.Response.MIMEType
		mu.Unlock()
		return true
	})
	go wait()

	if err := rodPage.Navigate(requestURL); err != nil {
		return page, fmt.Errorf("could not fetch page: %w", err)
	}

	// A page that never settles still has usable content.
	_ = rodPage.WaitStable(f.pageTimeout)

	if info, err := rodPage.Info(); err == nil {
		page.FinalURL = info.URL
	}

	mu.Lock()
	page.StatusCode = status
	page.ContentType = contentType
	mu.Unlock()

	// No document response observed (e.g. served from cache): trust navigation.
	if page.StatusCode == 0 {
		page.StatusCode = http.StatusOK
	}
	if page.StatusCode != http.StatusOK {
		return page, fmt.Errorf("%w: status %d", ErrUnexpectedStatus, page.StatusCode)
	}

	html, err := rodPage.HTML()
	if err != nil {
		return page, fmt.Errorf("could not read rendered page: %w", err)
	}
	page.Body = html
	page.ResponseSize = len(html)
	if page.ContentType == "" {
		page.ContentType = "text/html"
	}

	return page, nil
}

func (f *BrowserFetcher) Close() error {
	if f.browser != nil {
		return f.browser.Close()
	}
	return nil
}
