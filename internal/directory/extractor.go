package directory

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Selectors for the structural regions of the directory site. These are
// the only site-specific knowledge in the package.
const (
	categorySelector       = ".top-states h2 a"
	paginationSelector     = "ul.pagination a"
	listingSelector        = "div.directory-item"
	listingAddressSelector = "div.directory-item-text-normal"
)

// Extractor parses overview, listing and pagination markup into domain
// records. It resolves relative links against the directory's origin.
type Extractor struct {
	base   *url.URL
	logger *zap.Logger
}

// NewExtractor derives the directory origin from overviewURL.
func NewExtractor(overviewURL string, logger *zap.Logger) (*Extractor, error) {
	u, err := url.Parse(overviewURL)
	if err != nil {
		return nil, fmt.Errorf("parse overview url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("overview url %q is not absolute", overviewURL)
	}
	return &Extractor{
		base:   &url.URL{Scheme: u.Scheme, Host: u.Host},
		logger: logger,
	}, nil
}

// Host returns the directory's own hostname, without a www prefix.
func (e *Extractor) Host() string {
	return strings.TrimPrefix(e.base.Hostname(), "www.")
}

// Categories extracts the canton links from the overview page in
// document order.
func (e *Extractor) Categories(html []byte) []Category {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		e.logger.Warn("parse overview page", zap.Error(err))
		return nil
	}

	var categories []Category
	doc.Find(categorySelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}
		categories = append(categories, Category{Name: name, URL: e.absolute(href)})
	})
	e.logger.Info("discovered categories", zap.Int("count", len(categories)))
	return categories
}

// Listings extracts the provider entries from one listing page.
// Malformed blocks yield partial listings, never an error.
func (e *Extractor) Listings(html []byte, canton string) []Listing {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		e.logger.Warn("parse listing page", zap.Error(err))
		return nil
	}

	var listings []Listing
	doc.Find(listingSelector).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			name = "Unknown"
		}
		itemURL := ""
		if href, ok := link.Attr("href"); ok {
			itemURL = e.absolute(href)
		}

		address := strings.TrimSpace(s.Find(listingAddressSelector).First().Text())
		street, postalCode, city := ParseAddress(address)

		listings = append(listings, Listing{
			Name:       name,
			Address:    address,
			Street:     street,
			PostalCode: postalCode,
			City:       city,
			URL:        itemURL,
			Canton:     canton,
		})
	})
	return listings
}

// VisiblePages collects every page number rendered as a link in the
// pagination control. An empty result means a single page.
func (e *Extractor) VisiblePages(html []byte) []int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		e.logger.Warn("parse pagination", zap.Error(err))
		return nil
	}

	var pages []int
	doc.Find(paginationSelector).Each(func(_ int, s *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(s.Text()))
		if err != nil || n < 1 {
			return
		}
		pages = append(pages, n)
	})
	return pages
}

func (e *Extractor) absolute(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}
