// Package extract pulls the title field out of a fetched catalog page.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// Default selectors for the catalog title page layout.
const (
	DefaultRegionSelector  = "main"
	DefaultHeadingSelector = "h3.text-2xl.font-bold"
	DefaultLinkSelector    = "a.link.link-hover[href]"
)

// Selectors locate the title: the link inside the heading inside the region.
type Selectors struct {
	Region  string
	Heading string
	Link    string
}

// DefaultSelectors returns the selectors for the standard page layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Region:  DefaultRegionSelector,
		Heading: DefaultHeadingSelector,
		Link:    DefaultLinkSelector,
	}
}

// Extractor implements crawler.Extractor with goquery.
type Extractor struct {
	region  cascadia.Selector
	heading cascadia.Selector
	link    cascadia.Selector
}

var _ crawler.Extractor = (*Extractor)(nil)

// New compiles the selectors. Empty selectors fall back to the defaults.
func New(sel Selectors) (*Extractor, error) {
	def := DefaultSelectors()
	if strings.TrimSpace(sel.Region) == "" {
		sel.Region = def.Region
	}
	if strings.TrimSpace(sel.Heading) == "" {
		sel.Heading = def.Heading
	}
	if strings.TrimSpace(sel.Link) == "" {
		sel.Link = def.Link
	}

	region, err := cascadia.Compile(sel.Region)
	if err != nil {
		return nil, fmt.Errorf("region selector %q: %w", sel.Region, err)
	}
	heading, err := cascadia.Compile(sel.Heading)
	if err != nil {
		return nil, fmt.Errorf("heading selector %q: %w", sel.Heading, err)
	}
	link, err := cascadia.Compile(sel.Link)
	if err != nil {
		return nil, fmt.Errorf("link selector %q: %w", sel.Link, err)
	}
	return &Extractor{region: region, heading: heading, link: link}, nil
}

// Extract returns the title or NotFound when any expected node is missing.
// A body that cannot be parsed counts as missing.
func (e *Extractor) Extract(body []byte) crawler.Extraction {
	if len(body) == 0 {
		return crawler.NotFound()
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.NotFound()
	}

	region := doc.FindMatcher(e.region).First()
	if region.Length() == 0 {
		return crawler.NotFound()
	}
	heading := region.FindMatcher(e.heading).First()
	if heading.Length() == 0 {
		return crawler.NotFound()
	}
	link := heading.FindMatcher(e.link).First()
	if link.Length() == 0 {
		return crawler.NotFound()
	}

	// An empty link still counts as a title.
	return crawler.Found(strings.TrimSpace(link.Text()))
}
