// Package plugin defines the public types and interfaces of phonegrabber.
// External tools can import this package to plug in their own fetchers,
// extractors or output writers without forking the project.
package plugin

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// ---------- Core Data Types ----------

// PageData represents a fetched web page.
type PageData struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	StatusCode    int           `json:"status_code"`
	Headers       http.Header   `json:"-"`
	Body          string        `json:"-"`
	ContentType   string        `json:"content_type"`
	FetchedAt     time.Time     `json:"fetched_at"`
	FetchDuration time.Duration `json:"fetch_duration"`
	FetcherUsed   string        `json:"fetcher_used"`
	ResponseSize  int           `json:"response_size"`
}

// PhoneSet is a set of normalized phone numbers.
type PhoneSet map[string]struct{}

// NewPhoneSet builds a set from the given phones.
func NewPhoneSet(phones ...string) PhoneSet {
	s := make(PhoneSet, len(phones))
	for _, p := range phones {
		s.Add(p)
	}
	return s
}

// Add inserts a phone into the set.
func (s PhoneSet) Add(phone string) { s[phone] = struct{}{} }

// Has reports whether phone is in the set.
func (s PhoneSet) Has(phone string) bool {
	_, ok := s[phone]
	return ok
}

// Union adds every phone of other to s.
func (s PhoneSet) Union(other PhoneSet) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Sorted returns the phones in lexical order.
func (s PhoneSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// PageResult is the outcome of fetching and extracting a single page.
// Exactly one of Phones or Err is meaningful: a nil Err means success.
type PageResult struct {
	URL    string
	Phones PhoneSet
	Err    error
}

// OK reports whether the page was fetched and processed.
func (r PageResult) OK() bool { return r.Err == nil }

// Summary is the aggregated output of one grab invocation.
type Summary struct {
	Phones       PhoneSet      `json:"-"`
	Accepted     []string      `json:"accepted"`
	Rejected     []string      `json:"rejected"`
	PagesFetched int           `json:"pages_fetched"`
	PagesFailed  int           `json:"pages_failed"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// ---------- Plugin Interfaces ----------

// Fetcher defines how pages are retrieved.
type Fetcher interface {
	// Name returns a human-readable identifier for this fetcher.
	Name() string

	// Fetch retrieves the page at the given URL. A non-200 answer or a
	// connection failure is reported as an error.
	Fetch(ctx context.Context, url string) (*PageData, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Extractor defines how phones are extracted from a fetched page.
type Extractor interface {
	// Name returns a human-readable identifier.
	Name() string

	// Extract returns the normalized phones found in the page.
	Extract(ctx context.Context, page *PageData) (PhoneSet, error)
}

// OutputWriter defines how a grab summary is presented.
type OutputWriter interface {
	// Name returns a human-readable identifier for this writer.
	Name() string

	// Write renders the summary.
	Write(summary *Summary) error
}
