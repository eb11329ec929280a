// Package standardize turns raw scraped records into the final,
// uniformly shaped dataset. Every function here is total: malformed
// input yields empty fields, never an error.
package standardize

import (
	"regexp"
	"strings"
	"time"

	"github.com/helvetic-data/healthdir-crawler/internal/directory"
)

// Header is the column order of the standardized output file.
var Header = []string{
	"name", "address", "city", "postal_code", "phone",
	"email", "website", "specialty", "type", "source_url", "scraped_at",
}

// Swiss phone numbers appear in international, exit-code, national and
// bare local forms, with optional spacing between the groups. Ordered
// most to least specific; the bare form matches last.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+41\s?\d{2}\s?\d{3}\s?\d{2}\s?\d{2}`),
	regexp.MustCompile(`0041\s?\d{2}\s?\d{3}\s?\d{2}\s?\d{2}`),
	regexp.MustCompile(`0\d{2}\s?\d{3}\s?\d{2}\s?\d{2}`),
	regexp.MustCompile(`\d{3}\s?\d{2}\s?\d{2}`),
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Row is one standardized output record.
type Row struct {
	Name       string
	Address    string
	City       string
	PostalCode string
	Phone      string
	Email      string
	Website    string
	Specialty  string
	Type       string
	SourceURL  string
	ScrapedAt  string
}

// CleanText trims text and collapses internal whitespace, including
// newlines and tabs, into single spaces.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// ExtractPhone returns the first recognizable Swiss phone number in s,
// or "" when none matches.
func ExtractPhone(s string) string {
	for _, p := range phonePatterns {
		if m := p.FindString(s); m != "" {
			return CleanText(m)
		}
	}
	return ""
}

// ExtractEmail returns the first email address in s, or "".
func ExtractEmail(s string) string {
	return emailPattern.FindString(s)
}

// FromRecord standardizes a single raw record, stamping it with the
// scraper's type tag.
func FromRecord(r directory.Record, typeTag string) Row {
	return Row{
		Name:       CleanText(r.Name),
		Address:    CleanText(r.Address),
		City:       CleanText(r.City),
		PostalCode: CleanText(r.PostalCode),
		Phone:      ExtractPhone(r.Phone),
		Email:      ExtractEmail(r.Email),
		Website:    CleanText(r.Website),
		Specialty:  CleanText(strings.Join(r.Professions, "; ")),
		Type:       typeTag,
		SourceURL:  CleanText(r.SourceURL),
		ScrapedAt:  r.ScrapedAt.UTC().Format(time.RFC3339),
	}
}

// Standardize maps raw records into output rows in order.
func Standardize(records []directory.Record, typeTag string) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, FromRecord(r, typeTag))
	}
	return rows
}

func (r Row) fields() []string {
	return []string{
		r.Name, r.Address, r.City, r.PostalCode, r.Phone,
		r.Email, r.Website, r.Specialty, r.Type, r.SourceURL, r.ScrapedAt,
	}
}
