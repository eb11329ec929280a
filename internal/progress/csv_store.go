package progress

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/directory"
)

// recordHeader is the column order of the raw progress file.
var recordHeader = []string{
	"name", "address", "street", "postal_code", "city", "canton",
	"phone", "professions", "email", "website", "source_url", "scraped_at",
}

const professionSeparator = "; "

// CSVStore keeps state in two append-only files next to each other:
// <key>_processed_pages.csv and <key>_progress.csv. Appends are synced
// so a crash mid-run loses at most the record being written.
type CSVStore struct {
	pagesPath   string
	recordsPath string
	logger      *zap.Logger
}

// OpenCSVStore creates dir if needed and returns a store for one
// scraper key.
func OpenCSVStore(dir, key string, logger *zap.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &CSVStore{
		pagesPath:   filepath.Join(dir, key+"_processed_pages.csv"),
		recordsPath: filepath.Join(dir, key+"_progress.csv"),
		logger:      logger,
	}, nil
}

func (s *CSVStore) Load() (*State, error) {
	state := NewState()

	if err := s.loadPages(state); err != nil {
		return nil, err
	}
	if err := s.loadRecords(state); err != nil {
		return nil, err
	}
	s.logger.Debug("progress loaded",
		zap.Int("categories", len(state.ProcessedPages)),
		zap.Int("scraped_items", len(state.ScrapedURLs)))
	return state, nil
}

func (s *CSVStore) loadPages(state *State) error {
	rows, err := readAll(s.pagesPath)
	if err != nil {
		return fmt.Errorf("read processed pages: %w", err)
	}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		page, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			s.logger.Warn("skipping corrupt processed-pages row", zap.Strings("row", row))
			continue
		}
		state.markPage(row[0], page)
	}
	return nil
}

func (s *CSVStore) loadRecords(state *State) error {
	rows, err := readAll(s.recordsPath)
	if err != nil {
		return fmt.Errorf("read progress records: %w", err)
	}
	urlCol := indexOf(recordHeader, "source_url")
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == recordHeader[0] {
			continue
		}
		if len(row) <= urlCol {
			s.logger.Warn("skipping corrupt progress row", zap.Int("row", i))
			continue
		}
		if url := strings.TrimSpace(row[urlCol]); url != "" {
			state.ScrapedURLs[url] = true
		}
	}
	return nil
}

func (s *CSVStore) MarkPageProcessed(category string, page int) error {
	return s.appendRows(s.pagesPath, nil, [][]string{{category, strconv.Itoa(page)}})
}

func (s *CSVStore) AppendRecords(records []directory.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	return s.appendRows(s.recordsPath, recordHeader, rows)
}

// LoadRecords reads back every persisted record. Duplicate source URLs
// from overlapping runs are collapsed, first occurrence wins.
func (s *CSVStore) LoadRecords() ([]directory.Record, error) {
	rows, err := readAll(s.recordsPath)
	if err != nil {
		return nil, fmt.Errorf("read progress records: %w", err)
	}
	seen := make(map[string]bool)
	var records []directory.Record
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == recordHeader[0] {
			continue
		}
		if len(row) < len(recordHeader) {
			continue
		}
		if seen[row[10]] {
			continue
		}
		seen[row[10]] = true
		records = append(records, rowRecord(row))
	}
	return records, nil
}

func (s *CSVStore) Close() error { return nil }

// appendRows opens the file in append mode, writing header first when
// the file is empty, and syncs before returning.
func (s *CSVStore) appendRows(path string, header []string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if header != nil {
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() == 0 {
			if err := w.Write(header); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("append to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Sync()
}

func rowRecord(row []string) directory.Record {
	var professions []string
	if row[7] != "" {
		professions = strings.Split(row[7], professionSeparator)
	}
	at, _ := time.Parse(time.RFC3339, row[11])
	return directory.Record{
		Name:        row[0],
		Address:     row[1],
		Street:      row[2],
		PostalCode:  row[3],
		City:        row[4],
		Canton:      row[5],
		Phone:       row[6],
		Professions: professions,
		Email:       row[8],
		Website:     row[9],
		SourceURL:   row[10],
		ScrapedAt:   at,
	}
}

func recordRow(r directory.Record) []string {
	return []string{
		r.Name, r.Address, r.Street, r.PostalCode, r.City, r.Canton,
		r.Phone, strings.Join(r.Professions, professionSeparator),
		r.Email, r.Website, r.SourceURL, r.ScrapedAt.UTC().Format(time.RFC3339),
	}
}

// readAll reads every row of a CSV file, tolerating a missing file and
// rows with uneven field counts.
func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// A bad row, torn-final-line or otherwise, costs only
			// itself; the reader resumes on the next line.
			continue
		}
		if err != nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
