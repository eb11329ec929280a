package standardize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helvetic-data/healthdir-crawler/internal/directory"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Praxis am See  ", "Praxis am See"},
		{"Seestrasse 10\n8002\tZürich", "Seestrasse 10 8002 Zürich"},
		{"a   b\r\nc", "a b c"},
		{"", ""},
		{"   \n\t  ", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CleanText(tt.in), "%q", tt.in)
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+41 44 123 45 67", "+41 44 123 45 67"},
		{"Telefon: +41441234567, Fax: ...", "+41441234567"},
		{"0041 31 999 88 77", "0041 31 999 88 77"},
		{"044 123 45 67", "044 123 45 67"},
		{"rufen Sie 0791234567 an", "0791234567"},
		{"944 11 22", "944 11 22"},
		{"Lokal: 123 45 67", "123 45 67"},
		{"keine Nummer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ExtractPhone(tt.in), "%q", tt.in)
	}
}

func TestExtractEmail(t *testing.T) {
	require.Equal(t, "info@praxis.ch", ExtractEmail("Kontakt: info@praxis.ch."))
	require.Equal(t, "a.b-c+d@sub.example.org", ExtractEmail("a.b-c+d@sub.example.org"))
	require.Empty(t, ExtractEmail("kein-kontakt"))
}

func TestFromRecord(t *testing.T) {
	r := directory.Record{
		Name:        " Klinik\nHirslanden ",
		Address:     "Witellikerstrasse 40, 8032 Zürich",
		PostalCode:  "8032",
		City:        "Zürich",
		Phone:       "Tel. +41 44 387 21 11 (Zentrale)",
		Professions: []string{"Chirurgie", "Kardiologie"},
		Email:       "mailto-ish info@hirslanden.ch",
		Website:     "https://www.hirslanden.ch",
		SourceURL:   "https://www.onedoc.ch/de/klinik/hirslanden",
		ScrapedAt:   time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	row := FromRecord(r, "clinic")
	require.Equal(t, "Klinik Hirslanden", row.Name)
	require.Equal(t, "+41 44 387 21 11", row.Phone)
	require.Equal(t, "info@hirslanden.ch", row.Email)
	require.Equal(t, "Chirurgie; Kardiologie", row.Specialty)
	require.Equal(t, "clinic", row.Type)
	require.Equal(t, "2025-03-01T09:30:00Z", row.ScrapedAt)
}

func TestFromRecordEmptyInputStaysEmpty(t *testing.T) {
	row := FromRecord(directory.Record{}, "hospital")
	require.Empty(t, row.Name)
	require.Empty(t, row.Phone)
	require.Empty(t, row.Email)
	require.Empty(t, row.Specialty)
	require.Equal(t, "hospital", row.Type)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "clinics.csv")
	rows := Standardize([]directory.Record{
		{Name: "A", SourceURL: "https://x/a"},
		{Name: "B", SourceURL: "https://x/b"},
	}, "clinic")

	require.NoError(t, WriteCSV(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, strings.Join(Header, ","), lines[0])
	require.Contains(t, lines[1], "A")

	// A rerun replaces the file rather than appending.
	require.NoError(t, WriteCSV(path, rows[:1]))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}
