package directory

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const professionChipSelector = ".od-profile-chip"

// DetailExtractor fetches an item's detail page and pulls out phone,
// professions, email and an external website. Extraction is best-effort:
// a failed fetch or missing markup yields empty fields, never an error.
type DetailExtractor struct {
	fetcher Fetcher
	ownHost string
	logger  *zap.Logger
}

// NewDetailExtractor builds a DetailExtractor. ownHost is the
// directory's own hostname; links back to it are not external websites.
func NewDetailExtractor(fetcher Fetcher, ownHost string, logger *zap.Logger) *DetailExtractor {
	return &DetailExtractor{
		fetcher: fetcher,
		ownHost: strings.TrimPrefix(strings.ToLower(ownHost), "www."),
		logger:  logger,
	}
}

// Extract fetches itemURL and parses its detail fields.
func (d *DetailExtractor) Extract(ctx context.Context, itemURL string) DetailFields {
	res, err := d.fetcher.Fetch(ctx, itemURL)
	if err != nil {
		d.logger.Warn("detail page unavailable", zap.String("url", itemURL), zap.Error(err))
		return DetailFields{}
	}
	return ParseDetailFields(res.Body, d.ownHost)
}

// ParseDetailFields extracts the supplementary fields from detail page
// markup. ownHost excludes the directory's own links from the website
// candidates.
func ParseDetailFields(html []byte, ownHost string) DetailFields {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return DetailFields{}
	}

	var fields DetailFields

	fields.Phone = strings.TrimSpace(doc.Find(`a[href^="tel:"]`).First().Text())

	doc.Find(professionChipSelector).Each(func(_ int, s *goquery.Selection) {
		if p := strings.TrimSpace(s.Text()); p != "" {
			fields.Professions = append(fields.Professions, p)
		}
	})

	if href, ok := doc.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
		fields.Email = strings.TrimPrefix(href, "mailto:")
	}

	doc.Find(`a[href^="http"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || !isExternalLink(href, ownHost) {
			return true
		}
		fields.Website = href
		return false
	})

	return fields
}

func isExternalLink(href, ownHost string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" || ownHost == "" {
		return false
	}
	return host != ownHost && !strings.HasSuffix(host, "."+ownHost)
}
