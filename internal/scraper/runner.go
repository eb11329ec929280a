// Package scraper orchestrates one directory scrape: category
// discovery, paginated listing crawl, detail enrichment and the final
// standardized export. Progress is persisted after every page so the
// run resumes cleanly after interruption.
package scraper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/config"
	"github.com/helvetic-data/healthdir-crawler/internal/directory"
	"github.com/helvetic-data/healthdir-crawler/internal/metrics"
	"github.com/helvetic-data/healthdir-crawler/internal/progress"
	"github.com/helvetic-data/healthdir-crawler/internal/standardize"
)

// Summary reports what one run accomplished.
type Summary struct {
	RunID          string
	Categories     int
	PagesProcessed int
	PagesSkipped   int
	NewRecords     int
	Duplicates     int
}

// Snapshot is the live view exposed to the status server.
type Snapshot struct {
	RunID           string    `json:"run_id"`
	Scraper         string    `json:"scraper"`
	StartedAt       time.Time `json:"started_at"`
	CurrentCategory string    `json:"current_category"`
	Categories      int       `json:"categories"`
	PagesProcessed  int       `json:"pages_processed"`
	PagesSkipped    int       `json:"pages_skipped"`
	NewRecords      int       `json:"new_records"`
}

// Runner drives the scrape of one configured source.
type Runner struct {
	key      string
	cfg      config.ScraperConfig
	fetcher  directory.Fetcher
	ex       *directory.Extractor
	walker   *directory.Walker
	provider directory.Provider
	store    progress.Store
	logger   *zap.Logger

	// now is replaced in tests for deterministic timestamps.
	now func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// New wires up a Runner for one scraper key.
func New(key string, cfg config.ScraperConfig, fetcher directory.Fetcher, store progress.Store, logger *zap.Logger) (*Runner, error) {
	ex, err := directory.NewExtractor(cfg.OverviewURL, logger)
	if err != nil {
		return nil, fmt.Errorf("scraper %s: %w", key, err)
	}
	details := directory.NewDetailExtractor(fetcher, ex.Host(), logger)
	return &Runner{
		key:      key,
		cfg:      cfg,
		fetcher:  fetcher,
		ex:       ex,
		walker:   directory.NewWalker(fetcher, ex, logger),
		provider: directory.NewProvider(cfg.TypeTag, details),
		store:    store,
		logger:   logger.With(zap.String("scraper", key)),
		now:      time.Now,
	}, nil
}

// Snapshot returns the current run state for status reporting.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *Runner) update(fn func(s *Snapshot)) {
	r.mu.Lock()
	fn(&r.snap)
	r.mu.Unlock()
}

// Run executes the full scrape. A canceled context stops between pages
// and returns the partial summary with the context's error; everything
// persisted so far stays persisted.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	summary := Summary{RunID: runID}
	logger := r.logger.With(zap.String("run_id", runID))

	state, err := r.store.Load()
	if err != nil {
		// A broken progress store costs a re-crawl, not the run.
		logger.Warn("progress unreadable, starting from scratch", zap.Error(err))
		state = progress.NewState()
	}
	r.update(func(s *Snapshot) {
		*s = Snapshot{RunID: runID, Scraper: r.key, StartedAt: r.now()}
	})

	overview, err := r.fetcher.Fetch(ctx, r.cfg.OverviewURL)
	if err != nil {
		return summary, fmt.Errorf("fetch overview: %w", err)
	}
	categories := r.ex.Categories(overview.Body)
	if len(categories) == 0 {
		return summary, fmt.Errorf("no categories on %s", r.cfg.OverviewURL)
	}
	summary.Categories = len(categories)
	r.update(func(s *Snapshot) { s.Categories = len(categories) })
	logger.Info("categories discovered", zap.Int("count", len(categories)))

	for _, cat := range categories {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		r.update(func(s *Snapshot) { s.CurrentCategory = cat.Name })
		if err := r.crawlCategory(ctx, logger, state, cat, &summary); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			logger.Warn("category failed, moving on",
				zap.String("category", cat.Name), zap.Error(err))
		}
	}
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	if err := r.finalize(logger, summary); err != nil {
		return summary, err
	}
	logger.Info("run finished",
		zap.Int("pages_processed", summary.PagesProcessed),
		zap.Int("pages_skipped", summary.PagesSkipped),
		zap.Int("new_records", summary.NewRecords),
		zap.Int("duplicates", summary.Duplicates))
	return summary, nil
}

func (r *Runner) crawlCategory(ctx context.Context, logger *zap.Logger, state *progress.State, cat directory.Category, summary *Summary) error {
	// Page 1 is always fetched: pagination lookahead needs its markup
	// even when the page itself was processed in an earlier run.
	firstPage, err := r.fetcher.Fetch(ctx, cat.URL)
	if err != nil {
		metrics.ObservePage(r.key, "error")
		return fmt.Errorf("fetch first page: %w", err)
	}
	maxPage := r.walker.MaxPage(ctx, cat, firstPage.Body)
	logger.Debug("category paginated",
		zap.String("category", cat.Name), zap.Int("max_page", maxPage))

	for page := 1; page <= maxPage; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if state.PageProcessed(cat.Name, page) {
			summary.PagesSkipped++
			r.update(func(s *Snapshot) { s.PagesSkipped++ })
			metrics.ObservePage(r.key, "skipped")
			continue
		}

		body := firstPage.Body
		if page > 1 {
			res, err := r.fetcher.Fetch(ctx, directory.PageURL(cat.URL, page))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("page fetch failed, moving on",
					zap.String("category", cat.Name), zap.Int("page", page), zap.Error(err))
				metrics.ObservePage(r.key, "error")
				continue
			}
			body = res.Body
		}

		if err := r.processPage(ctx, state, cat, page, body, summary); err != nil {
			return err
		}
	}
	return nil
}

// processPage enriches and persists every unseen listing on a page,
// then marks the page done. Records are written before the page mark so
// a crash in between re-reads the page but never loses items.
func (r *Runner) processPage(ctx context.Context, state *progress.State, cat directory.Category, page int, body []byte, summary *Summary) error {
	listings := r.ex.Listings(body, cat.Name)

	var batch []directory.Record
	for _, l := range listings {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.URL == "" || state.ScrapedURLs[l.URL] {
			summary.Duplicates++
			continue
		}
		// Claim the URL before enriching so a repeat on the same
		// page is a duplicate, not a second fetch.
		state.ScrapedURLs[l.URL] = true
		fields := r.provider.ExtractDetailFields(ctx, l.URL)
		batch = append(batch, directory.NewRecord(l, fields, r.now()))
	}

	if err := r.store.AppendRecords(batch); err != nil {
		return fmt.Errorf("persist records: %w", err)
	}
	if err := r.store.MarkPageProcessed(cat.Name, page); err != nil {
		return fmt.Errorf("mark page: %w", err)
	}

	summary.PagesProcessed++
	summary.NewRecords += len(batch)
	r.update(func(s *Snapshot) {
		s.PagesProcessed++
		s.NewRecords += len(batch)
	})
	metrics.ObservePage(r.key, "processed")
	metrics.ObserveItems(r.key, len(batch))
	return nil
}

// finalize rebuilds the standardized output from the full store. The
// rewrite is skipped when this run added nothing and the file already
// exists.
func (r *Runner) finalize(logger *zap.Logger, summary Summary) error {
	if summary.NewRecords == 0 {
		if _, err := os.Stat(r.cfg.OutputFile); err == nil {
			logger.Info("no new records, keeping existing output",
				zap.String("file", r.cfg.OutputFile))
			return nil
		}
	}
	records, err := r.store.LoadRecords()
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	rows := standardize.Standardize(records, r.provider.TypeTag())
	if err := standardize.WriteCSV(r.cfg.OutputFile, rows); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info("standardized output written",
		zap.String("file", r.cfg.OutputFile), zap.Int("rows", len(rows)))
	return nil
}
