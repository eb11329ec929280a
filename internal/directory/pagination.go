package directory

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// Hard ceiling on page probing; no real category comes close.
const maxProbePages = 10000

// Walker discovers how many listing pages a category really has. The
// pagination control may hide the true final page number, so the walker
// probes beyond the highest visible link until growth stops.
type Walker struct {
	fetcher Fetcher
	ex      *Extractor
	logger  *zap.Logger
}

// NewWalker builds a Walker on top of a fetcher and extractor.
func NewWalker(fetcher Fetcher, ex *Extractor, logger *zap.Logger) *Walker {
	return &Walker{fetcher: fetcher, ex: ex, logger: logger}
}

// PageURL returns the URL for the n-th page of a category. Page 1 is the
// category URL itself.
func PageURL(categoryURL string, page int) string {
	if page <= 1 {
		return categoryURL
	}
	return fmt.Sprintf("%s?page=%d", categoryURL, page)
}

// MaxPage determines the number of pages in cat, starting from its
// already-fetched first page. The lookahead repeats until stable: a
// probe page whose pagination shows a higher number adopts that number;
// a probe page that still has items adopts the probe as the ceiling; an
// empty or unreachable probe stops the search. Over-counting costs one
// wasted fetch of an empty page; under-counting loses data, so growth
// always wins ties.
func (w *Walker) MaxPage(ctx context.Context, cat Category, firstPage []byte) int {
	visible := w.ex.VisiblePages(firstPage)
	if len(visible) == 0 {
		return 1
	}
	highest := maxOf(visible)

	for highest < maxProbePages {
		probe := highest + 1
		res, err := w.fetcher.Fetch(ctx, PageURL(cat.URL, probe))
		if err != nil {
			w.logger.Debug("probe page unreachable",
				zap.String("canton", cat.Name),
				zap.Int("page", probe),
				zap.Error(err),
			)
			break
		}
		if redirectedToStart(res.FinalURL) {
			break
		}
		if pv := w.ex.VisiblePages(res.Body); len(pv) > 0 && maxOf(pv) > highest {
			highest = maxOf(pv)
			w.logger.Info("pagination grew beyond visible links",
				zap.String("canton", cat.Name),
				zap.Int("highest", highest),
			)
			continue
		}
		if len(w.ex.Listings(res.Body, cat.Name)) > 0 {
			highest = probe
			continue
		}
		break
	}
	return highest
}

// redirectedToStart reports whether a probe for page N was redirected
// back to the first page, which the site does for nonexistent pages.
func redirectedToStart(finalURL string) bool {
	if finalURL == "" {
		return false
	}
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	page := u.Query().Get("page")
	return page == "" || page == "1"
}

func maxOf(pages []int) int {
	m := pages[0]
	for _, p := range pages[1:] {
		if p > m {
			m = p
		}
	}
	return m
}
