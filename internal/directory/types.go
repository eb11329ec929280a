// Package directory models the provider directory being crawled: its
// categories ("cantons"), paged listings and per-item detail pages.
package directory

import (
	"context"
	"time"

	"github.com/helvetic-data/healthdir-crawler/internal/fetch"
)

// Category is a second-level grouping of listings, discovered once per
// run from the overview page.
type Category struct {
	Name string
	URL  string
}

// Listing is one raw provider entry on a paged listing page. URL is the
// natural key for deduplication across runs.
type Listing struct {
	Name       string
	Address    string
	Street     string
	PostalCode string
	City       string
	URL        string
	Canton     string
}

// DetailFields holds the supplementary data scraped from an item's
// detail page. All fields are best-effort and may be empty.
type DetailFields struct {
	Phone       string
	Professions []string
	Email       string
	Website     string
}

// Record is a fully enriched listing, persisted once and never mutated.
type Record struct {
	Name        string
	Address     string
	Street      string
	PostalCode  string
	City        string
	Canton      string
	Phone       string
	Professions []string
	Email       string
	Website     string
	SourceURL   string
	ScrapedAt   time.Time
}

// NewRecord combines a listing with its detail fields. The website
// defaults to the item's own directory URL unless the detail page
// exposed an external one.
func NewRecord(l Listing, d DetailFields, at time.Time) Record {
	website := l.URL
	if d.Website != "" {
		website = d.Website
	}
	return Record{
		Name:        l.Name,
		Address:     l.Address,
		Street:      l.Street,
		PostalCode:  l.PostalCode,
		City:        l.City,
		Canton:      l.Canton,
		Phone:       d.Phone,
		Professions: d.Professions,
		Email:       d.Email,
		Website:     website,
		SourceURL:   l.URL,
		ScrapedAt:   at,
	}
}

// Fetcher is the page-retrieval dependency shared by the walker and the
// detail extractor.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
}

// Provider is the per-category capability the orchestrator is generic
// over: detail extraction plus the type tag stamped into standardized
// output.
type Provider interface {
	ExtractDetailFields(ctx context.Context, url string) DetailFields
	TypeTag() string
}
