package progress

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/helvetic-data/healthdir-crawler/internal/directory"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed_pages (
	category TEXT NOT NULL,
	page     INTEGER NOT NULL,
	UNIQUE (category, page) ON CONFLICT IGNORE
);
CREATE TABLE IF NOT EXISTS scraped_items (
	name        TEXT,
	address     TEXT,
	street      TEXT,
	postal_code TEXT,
	city        TEXT,
	canton      TEXT,
	phone       TEXT,
	professions TEXT,
	email       TEXT,
	website     TEXT,
	source_url  TEXT PRIMARY KEY ON CONFLICT IGNORE,
	scraped_at  TEXT
);`

// SQLiteStore keeps state in one database file per scraper key,
// <key>_progress.db. Duplicate pages and items are absorbed by the
// schema, making every write idempotent.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLiteStore opens or creates the database under dir.
func OpenSQLiteStore(dir, key string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	path := filepath.Join(dir, key+"_progress.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open progress db: %w", err)
	}
	// The store is written from a single goroutine; one connection
	// avoids SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init progress schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Load() (*State, error) {
	state := NewState()

	rows, err := s.db.Query(`SELECT category, page FROM processed_pages`)
	if err != nil {
		return nil, fmt.Errorf("load processed pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var page int
		if err := rows.Scan(&category, &page); err != nil {
			return nil, fmt.Errorf("scan processed page: %w", err)
		}
		state.markPage(category, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load processed pages: %w", err)
	}

	urls, err := s.db.Query(`SELECT source_url FROM scraped_items`)
	if err != nil {
		return nil, fmt.Errorf("load scraped items: %w", err)
	}
	defer urls.Close()
	for urls.Next() {
		var url string
		if err := urls.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan scraped item: %w", err)
		}
		state.ScrapedURLs[url] = true
	}
	if err := urls.Err(); err != nil {
		return nil, fmt.Errorf("load scraped items: %w", err)
	}

	s.logger.Debug("progress loaded",
		zap.Int("categories", len(state.ProcessedPages)),
		zap.Int("scraped_items", len(state.ScrapedURLs)))
	return state, nil
}

func (s *SQLiteStore) MarkPageProcessed(category string, page int) error {
	if _, err := s.db.Exec(
		`INSERT INTO processed_pages (category, page) VALUES (?, ?)`,
		category, page,
	); err != nil {
		return fmt.Errorf("mark page processed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendRecords(records []directory.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append records: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO scraped_items
		(name, address, street, postal_code, city, canton,
		 phone, professions, email, website, source_url, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("append records: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(
			r.Name, r.Address, r.Street, r.PostalCode, r.City, r.Canton,
			r.Phone, strings.Join(r.Professions, professionSeparator),
			r.Email, r.Website, r.SourceURL, r.ScrapedAt.UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("append record %s: %w", r.SourceURL, err)
		}
	}
	return tx.Commit()
}

// LoadRecords reads back every persisted record in insertion order.
func (s *SQLiteStore) LoadRecords() ([]directory.Record, error) {
	rows, err := s.db.Query(`SELECT name, address, street, postal_code, city, canton,
		phone, professions, email, website, source_url, scraped_at
		FROM scraped_items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var records []directory.Record
	for rows.Next() {
		var r directory.Record
		var professions, scrapedAt string
		if err := rows.Scan(&r.Name, &r.Address, &r.Street, &r.PostalCode, &r.City, &r.Canton,
			&r.Phone, &professions, &r.Email, &r.Website, &r.SourceURL, &scrapedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if professions != "" {
			r.Professions = strings.Split(professions, professionSeparator)
		}
		r.ScrapedAt, _ = time.Parse(time.RFC3339, scrapedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
