package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
scrapers:
  clinics:
    name: Clinics
    overview_url: https://www.onedoc.ch/de/klinik
    type_tag: clinic
    output_file: clinics.csv
  hospitals:
    name: Hospitals
    overview_url: https://www.onedoc.ch/de/spital
    type_tag: hospital
    output_file: hospitals.csv
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestSourcesListsConfiguredScrapers(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"sources", "--config", writeTestConfig(t)})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "clinics")
	require.Contains(t, out.String(), "https://www.onedoc.ch/de/spital")
}

func TestCrawlRejectsUnknownScraper(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"crawl", "dentists", "--config", writeTestConfig(t)})

	err := root.Execute()
	require.ErrorContains(t, err, "unknown scraper")
}

func TestResolveRequiresAPIKey(t *testing.T) {
	t.Setenv("HEALTHDIR_SEARCH_API_KEY", "")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"resolve-websites", "clinics", "--config", writeTestConfig(t)})

	err := root.Execute()
	require.ErrorContains(t, err, "api_key")
}
