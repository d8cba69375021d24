package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/ramkansal/phonegrabber/pkg/logger"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
	"go.uber.org/zap"
)

// Variant selects the phone pattern flavour.
type Variant string

const (
	// VariantStrict requires a boundary character (!?>.,-: or whitespace)
	// right before the number.
	VariantStrict Variant = "strict"
	// VariantLenient matches a trunk marker anywhere, including mid-word or
	// inside a longer run of digits.
	VariantLenient Variant = "lenient"
)

// Source selects what part of the page body is scanned.
type Source string

const (
	// SourceRaw scans the body exactly as received, markup included.
	SourceRaw Source = "raw"
	// SourceText scans only the visible text nodes of an HTML document.
	SourceText Source = "text"
)

// space is any Unicode whitespace, NBSP and the other Z separators included.
// RE2's \s alone covers only ASCII.
const space = `\s\p{Z}\v\x{85}\x{1c}-\x{1f}`

// phoneBody is the shared tail of both variants: trunk marker, optional
// parenthesised area code starting with 4, 8 or 9, then 3-2-2 digits with
// optional separators.
const phoneBody = `(8|\+7)[` + space + `]*?(|\()(4|8|9)\d{2}(|\))[` + space + `]*?\d{3}` +
	`(-|[` + space + `]*?|)\d{2}(-|[` + space + `]*?|)\d{2}`

var (
	strictPattern  = regexp.MustCompile(`([!?>.,\-:` + space + `])[` + space + `]*` + phoneBody)
	lenientPattern = regexp.MustCompile(phoneBody)

	// \d is ASCII-only here too, so every Unicode separator is dropped.
	cleanPattern = regexp.MustCompile(`[^\d+]`)
)

// Normalize maps a matched phone to the 8KKKNNNNNNN form: every "+7" becomes
// "8", then everything that is neither a digit nor "+" is dropped.
// The result is not length checked.
func Normalize(raw string) string {
	return cleanPattern.ReplaceAllString(strings.ReplaceAll(raw, "+7", "8"), "")
}

// Matcher finds phone-shaped substrings in text.
type Matcher struct {
	pattern *regexp.Regexp
}

// NewMatcher returns a matcher for the given variant. Unknown variants fall
// back to VariantStrict.
func NewMatcher(v Variant) *Matcher {
	if v == VariantLenient {
		return &Matcher{pattern: lenientPattern}
	}
	return &Matcher{pattern: strictPattern}
}

// Candidates returns every non-overlapping match in text, left to right,
// deduplicated by exact substring.
func (m *Matcher) Candidates(_ context.Context, text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, loc := range m.pattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	return out
}

// ExtractPhones finds and normalizes every phone in text.
func (m *Matcher) ExtractPhones(ctx context.Context, text string) plugin.PhoneSet {
	phones := make(plugin.PhoneSet)
	for _, raw := range m.Candidates(ctx, text) {
		phones.Add(Normalize(raw))
	}
	return phones
}

// ExtractPhones runs the strict matcher over text.
func ExtractPhones(ctx context.Context, text string) plugin.PhoneSet {
	return NewMatcher(VariantStrict).ExtractPhones(ctx, text)
}

// PhonesExtractor extracts phone numbers from page content.
type PhonesExtractor struct {
	matcher  *Matcher
	source   Source
	validate bool
}

// Option configures a PhonesExtractor.
type Option func(*PhonesExtractor)

// WithVariant selects the pattern variant.
func WithVariant(v Variant) Option {
	return func(e *PhonesExtractor) {
		e.matcher = NewMatcher(v)
	}
}

// WithSource selects which part of the body is scanned.
func WithSource(s Source) Option {
	return func(e *PhonesExtractor) {
		e.source = s
	}
}

// WithValidation drops phones that are not valid Russian numbers.
func WithValidation(enabled bool) Option {
	return func(e *PhonesExtractor) {
		e.validate = enabled
	}
}

// NewPhonesExtractor creates an extractor. Without options it scans the raw
// body with the strict pattern and keeps every match.
func NewPhonesExtractor(opts ...Option) *PhonesExtractor {
	e := &PhonesExtractor{
		matcher: NewMatcher(VariantStrict),
		source:  SourceRaw,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *PhonesExtractor) Name() string { return "phones" }

func (e *PhonesExtractor) Extract(ctx context.Context, page *plugin.PageData) (plugin.PhoneSet, error) {
	if page == nil || page.Body == "" {
		return plugin.PhoneSet{}, nil
	}

	text := page.Body
	if e.source == SourceText {
		var err error
		text, err = TextContent(page.Body)
		if err != nil {
			return nil, err
		}
	}

	phones := e.matcher.ExtractPhones(ctx, text)
	if e.validate {
		dropInvalid(ctx, phones)
	}
	return phones, nil
}

func dropInvalid(ctx context.Context, phones plugin.PhoneSet) {
	for p := range phones {
		if !IsValid(p) {
			logger.Debug(ctx, "dropping invalid phone", zap.String("phone", p))
			delete(phones, p)
		}
	}
}
