package extractor

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
)

// TelLinksExtractor extracts phones from tel: hyperlinks. Visible text
// scanning never sees href attributes, so it complements SourceText.
type TelLinksExtractor struct {
	matcher  *Matcher
	validate bool
}

// NewTelLinksExtractor creates a tel: link extractor. With validate set, only
// valid Russian numbers are kept.
func NewTelLinksExtractor(validate bool) *TelLinksExtractor {
	return &TelLinksExtractor{
		matcher:  NewMatcher(VariantLenient),
		validate: validate,
	}
}

func (e *TelLinksExtractor) Name() string { return "tel_links" }

func (e *TelLinksExtractor) Extract(ctx context.Context, page *plugin.PageData) (plugin.PhoneSet, error) {
	phones := plugin.PhoneSet{}
	if page == nil || page.Body == "" {
		return phones, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, err
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		number, ok := telNumber(href)
		if !ok {
			return
		}
		phones.Union(e.matcher.ExtractPhones(ctx, number))
	})

	if e.validate {
		dropInvalid(ctx, phones)
	}
	return phones, nil
}

// telNumber returns the unescaped number part of a tel: URI.
func telNumber(href string) (string, bool) {
	trimmed := strings.TrimSpace(href)
	if len(trimmed) < 4 || !strings.EqualFold(trimmed[:4], "tel:") {
		return "", false
	}
	number, err := url.PathUnescape(trimmed[4:])
	if err != nil {
		number = trimmed[4:]
	}
	return number, number != ""
}
