// Package progress persists crawl state between runs so an interrupted
// scrape resumes where it stopped instead of starting over.
package progress

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/config"
	"github.com/helvetic-data/healthdir-crawler/internal/directory"
)

// State is the resume point loaded at startup: which listing pages are
// already done and which items are already persisted.
type State struct {
	// ProcessedPages maps category name to the set of completed pages.
	ProcessedPages map[string]map[int]bool
	// ScrapedURLs is the set of item source URLs already written.
	ScrapedURLs map[string]bool
}

// NewState returns an empty resume point.
func NewState() *State {
	return &State{
		ProcessedPages: make(map[string]map[int]bool),
		ScrapedURLs:    make(map[string]bool),
	}
}

// PageProcessed reports whether a page was completed in a prior run.
func (s *State) PageProcessed(category string, page int) bool {
	return s.ProcessedPages[category][page]
}

func (s *State) markPage(category string, page int) {
	pages, ok := s.ProcessedPages[category]
	if !ok {
		pages = make(map[int]bool)
		s.ProcessedPages[category] = pages
	}
	pages[page] = true
}

// Store is the durable side of State. Writes must survive a process
// crash: once MarkPageProcessed or AppendRecords returns, a later Load
// sees the data.
type Store interface {
	// Load reads the persisted state. A store that has never been
	// written to loads an empty State, not an error.
	Load() (*State, error)
	// MarkPageProcessed records a fully handled listing page.
	MarkPageProcessed(category string, page int) error
	// AppendRecords persists newly scraped items. Records whose
	// SourceURL was already stored are skipped, not duplicated.
	AppendRecords(records []directory.Record) error
	// LoadRecords returns every persisted record, in insertion order.
	LoadRecords() ([]directory.Record, error)
	Close() error
}

// Open builds the configured backend for one scraper key.
func Open(cfg config.ProgressConfig, key string, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "csv":
		return OpenCSVStore(cfg.Dir, key, logger)
	case "sqlite":
		return OpenSQLiteStore(cfg.Dir, key, logger)
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Backend)
	}
}
