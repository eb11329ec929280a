package directory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const overviewHTML = `
<html><body>
<div class="top-states">
  <h2><a href="/de/klinik/zuerich">Zürich</a></h2>
  <h2><a href="/de/klinik/bern">Bern</a></h2>
  <h2><a href="https://www.onedoc.ch/de/klinik/genf">Genf</a></h2>
</div>
</body></html>`

const listingHTML = `
<html><body>
<div class="directory-item">
  <a href="/de/klinik/praxis-am-see">Praxis am See</a>
  <div class="directory-item-text-normal">Seestrasse 10, 8002 Zürich</div>
</div>
<div class="directory-item">
  <a href="/de/klinik/zentrum-nord">Zentrum Nord</a>
  <div class="directory-item-text-normal">Nordweg 3</div>
</div>
<div class="directory-item">
  <div class="directory-item-text-normal">Ohne Link 1, 3000 Bern</div>
</div>
</body></html>`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	ex, err := NewExtractor("https://www.onedoc.ch/de/klinik", zap.NewNop())
	require.NoError(t, err)
	return ex
}

func TestNewExtractorRejectsRelativeURL(t *testing.T) {
	_, err := NewExtractor("/de/klinik", zap.NewNop())
	require.Error(t, err)
}

func TestCategories(t *testing.T) {
	ex := newTestExtractor(t)
	cats := ex.Categories([]byte(overviewHTML))
	require.Len(t, cats, 3)
	require.Equal(t, "Zürich", cats[0].Name)
	require.Equal(t, "https://www.onedoc.ch/de/klinik/zuerich", cats[0].URL)
	require.Equal(t, "https://www.onedoc.ch/de/klinik/genf", cats[2].URL,
		"absolute links are kept as-is")
}

func TestListings(t *testing.T) {
	ex := newTestExtractor(t)
	listings := ex.Listings([]byte(listingHTML), "Zürich")
	require.Len(t, listings, 3)

	first := listings[0]
	require.Equal(t, "Praxis am See", first.Name)
	require.Equal(t, "https://www.onedoc.ch/de/klinik/praxis-am-see", first.URL)
	require.Equal(t, "Seestrasse 10", first.Street)
	require.Equal(t, "8002", first.PostalCode)
	require.Equal(t, "Zürich", first.City)
	require.Equal(t, "Zürich", first.Canton)

	second := listings[1]
	require.Equal(t, "Nordweg 3", second.Street)
	require.Empty(t, second.PostalCode)
	require.Empty(t, second.City)

	third := listings[2]
	require.Equal(t, "Unknown", third.Name)
	require.Empty(t, third.URL)
}

func TestListingsEmptyPage(t *testing.T) {
	ex := newTestExtractor(t)
	require.Empty(t, ex.Listings([]byte("<html><body></body></html>"), "Bern"))
}

func TestVisiblePages(t *testing.T) {
	ex := newTestExtractor(t)

	html := `<ul class="pagination">
		<li><a href="?page=1">1</a></li>
		<li><a href="?page=2">2</a></li>
		<li><a href="?page=3">3</a></li>
		<li><a href="?page=2">Weiter</a></li>
	</ul>`
	require.Equal(t, []int{1, 2, 3}, ex.VisiblePages([]byte(html)),
		"non-numeric links are ignored")

	require.Empty(t, ex.VisiblePages([]byte("<html><body>no pagination</body></html>")))
}

func TestHost(t *testing.T) {
	ex := newTestExtractor(t)
	require.Equal(t, "onedoc.ch", ex.Host())
}
