package grabber_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ramkansal/phonegrabber/internal/extractor"
	"github.com/ramkansal/phonegrabber/internal/fetcher"
	"github.com/ramkansal/phonegrabber/internal/grabber"
	"github.com/ramkansal/phonegrabber/pkg/logger"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeFetcher serves canned bodies keyed by URL; unknown URLs fail.
type fakeFetcher struct {
	bodies map[string]string
	delay  time.Duration

	mu      sync.Mutex
	visited []string
	closed  bool

	closeErr error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*plugin.PageData, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.visited = append(f.visited, url)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", url)
	}
	return &plugin.PageData{URL: url, StatusCode: http.StatusOK, Body: body}, nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeFetcher) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visited...)
}

func factoryFor(f *fakeFetcher, calls *int) grabber.FetcherFactory {
	return func() (plugin.Fetcher, error) {
		if calls != nil {
			*calls++
		}
		return f, nil
	}
}

func observedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.WithLogger(context.Background(), zap.New(core)), logs
}

func TestGrab_EmptyInput(t *testing.T) {
	for _, pages := range [][]string{nil, {}} {
		ctx, logs := observedContext()
		calls := 0
		g := grabber.New(grabber.WithFetcherFactory(factoryFor(&fakeFetcher{}, &calls)))

		phones, err := g.Grab(ctx, pages)
		require.ErrorIs(t, err, grabber.ErrEmptyInput)
		require.Nil(t, phones)
		require.Zero(t, calls, "no fetcher may be created")
		require.Equal(t, 1, logs.FilterMessage("empty/wrong input").Len())
	}
}

func TestGrab_NoGoodURLs(t *testing.T) {
	ctx, logs := observedContext()
	calls := 0
	g := grabber.New(grabber.WithFetcherFactory(factoryFor(&fakeFetcher{}, &calls)))

	phones, err := g.Grab(ctx, []string{"example.com", "ftp://example.com", "example.com"})
	require.ErrorIs(t, err, grabber.ErrNoGoodURLs)
	require.Nil(t, phones)
	require.Zero(t, calls)

	skipped := logs.FilterMessage("bad urls are skipped").All()
	require.Len(t, skipped, 1)
	require.Equal(t, 1, logs.FilterMessage("there is no good pages urls").Len())
}

func TestGrab_OnlyAcceptedURLsAreFetched(t *testing.T) {
	ctx, _ := observedContext()
	f := &fakeFetcher{bodies: map[string]string{
		"https://example.com/contacts": "Звоните: 8 905 531 01 45",
	}}
	g := grabber.New(grabber.WithFetcherFactory(factoryFor(f, nil)))

	summary, err := g.Run(ctx, []string{"https://example.com/contacts", "not a url"})
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/contacts"}, f.Visited())
	require.Equal(t, []string{"89055310145"}, summary.Phones.Sorted())
	require.Equal(t, []string{"https://example.com/contacts"}, summary.Accepted)
	require.Equal(t, []string{"not a url"}, summary.Rejected)
	require.True(t, f.closed)
}

func TestGrab_DuplicatesFetchedOnce(t *testing.T) {
	ctx, _ := observedContext()
	f := &fakeFetcher{bodies: map[string]string{
		"http://a.com":  "a: 8 495 111 33 00",
		"http://a.com/": "b: 8 495 111 33 00",
	}}
	g := grabber.New(grabber.WithFetcherFactory(factoryFor(f, nil)))

	phones, err := g.Grab(ctx, []string{"http://a.com", "http://a.com", "http://a.com/"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"http://a.com", "http://a.com/"}, f.Visited())
	require.Equal(t, []string{"84951113300"}, phones.Sorted())
}

func TestGrab_FailedPageDoesNotAbortBatch(t *testing.T) {
	ctx, logs := observedContext()
	f := &fakeFetcher{bodies: map[string]string{
		"http://ok-1.test": "tel: +7 (495) 137-77-67",
		"http://ok-2.test": "<span>8 800 700-70-09</span>",
	}}
	g := grabber.New(grabber.WithFetcherFactory(factoryFor(f, nil)))

	summary, err := g.Run(ctx, []string{"http://ok-1.test", "http://down.test", "http://ok-2.test"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"84951377767", "88007007009"}, summary.Phones.Sorted())
	require.Equal(t, 2, summary.PagesFetched)
	require.Equal(t, 1, summary.PagesFailed)
	require.Equal(t, 1, logs.FilterMessage("connection error").Len())
}

func TestGrab_AllPagesFail(t *testing.T) {
	ctx, _ := observedContext()
	f := &fakeFetcher{}
	g := grabber.New(grabber.WithFetcherFactory(factoryFor(f, nil)))

	phones, err := g.Grab(ctx, []string{"http://down-1.test", "http://down-2.test"})
	require.NoError(t, err)
	require.NotNil(t, phones)
	require.Empty(t, phones)
	require.True(t, f.closed, "fetcher must be released even when every page failed")
}

func TestGrab_HTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contacts":
			_, _ = w.Write([]byte(`<html><body><a href="tel:+79055310145">+7 (905) 531-01-45</a></body></html>`))
		default:
			http.NotFound(w, r)
			_, _ = w.Write([]byte("call 8 495 111 33 00"))
		}
	}))
	defer srv.Close()

	ctx, logs := observedContext()
	g := grabber.New(grabber.WithFetcherFactory(grabber.DefaultFetcherFactory(fetcher.HTTPFetcherConfig{
		Timeout: 5 * time.Second,
	})))

	phones, err := g.Grab(ctx, []string{srv.URL + "/contacts", srv.URL + "/missing"})
	require.NoError(t, err)
	require.Equal(t, []string{"89055310145"}, phones.Sorted())

	bad := logs.FilterMessage("incorrect server answer").All()
	require.Len(t, bad, 1)
	require.EqualValues(t, http.StatusNotFound, bad[0].ContextMap()["status"])
}

func TestGrab_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down := srv.URL
	srv.Close()

	ctx, logs := observedContext()
	phones, err := grabber.New().Grab(ctx, []string{down})
	require.NoError(t, err)
	require.Empty(t, phones)
	require.Equal(t, 1, logs.FilterMessage("connection error").Len())
}

func TestGrab_FetcherFactoryError(t *testing.T) {
	ctx, _ := observedContext()
	boom := errors.New("boom")
	g := grabber.New(grabber.WithFetcherFactory(func() (plugin.Fetcher, error) { return nil, boom }))

	_, err := g.Grab(ctx, []string{"http://a.test"})
	require.ErrorIs(t, err, boom)
}

func TestGrab_CustomExtractor(t *testing.T) {
	ctx, _ := observedContext()
	f := &fakeFetcher{bodies: map[string]string{"http://a.test": "id=89055310145"}}
	g := grabber.New(
		grabber.WithFetcherFactory(factoryFor(f, nil)),
		grabber.WithExtractor(extractor.NewPhonesExtractor(extractor.WithVariant(extractor.VariantLenient))),
	)

	phones, err := g.Grab(ctx, []string{"http://a.test"})
	require.NoError(t, err)
	require.Equal(t, []string{"89055310145"}, phones.Sorted())
}

func TestFetchAll_ConcurrencyLimit(t *testing.T) {
	ctx, _ := observedContext()
	f := &fakeFetcher{bodies: map[string]string{}, delay: 20 * time.Millisecond}
	pages := make([]string, 10)
	for i := range pages {
		pages[i] = fmt.Sprintf("http://p%d.test", i)
		f.bodies[pages[i]] = ""
	}

	g := grabber.New(grabber.WithFetcherFactory(factoryFor(f, nil)), grabber.WithConcurrency(2))
	phones, err := g.FetchAll(ctx, pages)
	require.NoError(t, err)
	require.Empty(t, phones)
	require.Len(t, f.Visited(), 10)
	require.LessOrEqual(t, f.maxInFlight.Load(), int32(2))
}

// barrierFetcher blocks every fetch until n fetches are in flight at once.
type barrierFetcher struct {
	n       int32
	started atomic.Int32
	release chan struct{}
}

func (b *barrierFetcher) Name() string { return "barrier" }
func (b *barrierFetcher) Close() error { return nil }

func (b *barrierFetcher) Fetch(ctx context.Context, url string) (*plugin.PageData, error) {
	if b.started.Add(1) == b.n {
		close(b.release)
	}
	select {
	case <-b.release:
		return &plugin.PageData{URL: url, Body: "x: 8 905 531 01 45"}, nil
	case <-time.After(5 * time.Second):
		return nil, errors.New("fetches did not run concurrently")
	}
}

func TestFetchAll_Unbounded(t *testing.T) {
	ctx, _ := observedContext()
	b := &barrierFetcher{n: 20, release: make(chan struct{})}
	pages := make([]string, 20)
	for i := range pages {
		pages[i] = fmt.Sprintf("http://p%d.test", i)
	}

	g := grabber.New(
		grabber.WithFetcherFactory(func() (plugin.Fetcher, error) { return b, nil }),
		grabber.WithConcurrency(0),
	)
	summary, err := g.Run(ctx, pages)
	require.NoError(t, err)
	require.Equal(t, 20, summary.PagesFetched)
	require.Equal(t, []string{"89055310145"}, summary.Phones.Sorted())
}

func TestUnion(t *testing.T) {
	results := []plugin.PageResult{
		{URL: "a", Phones: plugin.NewPhoneSet("1", "2")},
		{URL: "b", Err: errors.New("down"), Phones: plugin.NewPhoneSet("9")},
		{URL: "c", Phones: plugin.NewPhoneSet("2", "3")},
	}
	require.Equal(t, []string{"1", "2", "3"}, grabber.Union(results).Sorted())
	require.Empty(t, grabber.Union(nil))
}

func TestCloseErrorIsLogged(t *testing.T) {
	ctx, logs := observedContext()
	f := &fakeFetcher{
		bodies:   map[string]string{"http://a.test": "x: 8 905 531 01 45"},
		closeErr: errors.New("browser already gone"),
	}
	g := grabber.New(grabber.WithFetcherFactory(factoryFor(f, nil)))

	phones, err := g.FetchAll(ctx, []string{"http://a.test"})
	require.NoError(t, err)
	require.Equal(t, []string{"89055310145"}, phones.Sorted())

	_, err = g.Run(ctx, []string{"http://a.test"})
	require.NoError(t, err)

	closeLogs := logs.FilterMessage("could not close fetcher").All()
	require.Len(t, closeLogs, 2)
	require.Equal(t, "browser already gone", closeLogs[0].ContextMap()["error"])
}
