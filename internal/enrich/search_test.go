package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var bannedForTest = []string{"onedoc.ch", "comparis.ch", "doktor.ch"}

func searchJSON(link string) string {
	return fmt.Sprintf(`{"organic_results":[{"link":%q}]}`, link)
}

// newTestSearchClient points the client at a test server and replaces
// the backoff sleep with a recorder.
func newTestSearchClient(t *testing.T, url string) (*SearchClient, *[]time.Duration) {
	t.Helper()
	c := NewSearchClient(url, "test-key", bannedForTest, zap.NewNop())
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestTopResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "google", r.URL.Query().Get("engine"))
		require.Equal(t, "Praxis am See Zürich", r.URL.Query().Get("q"))
		require.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		require.Equal(t, "1", r.URL.Query().Get("num"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchJSON("https://praxis-am-see.ch"))
	}))
	defer srv.Close()

	c, _ := newTestSearchClient(t, srv.URL)
	link, err := c.TopResult(context.Background(), "Praxis am See Zürich")
	require.NoError(t, err)
	require.Equal(t, "https://praxis-am-see.ch", link)
}

func TestTopResultRetriesRateLimit(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchJSON("https://klinik.ch"))
	}))
	defer srv.Close()

	c, slept := newTestSearchClient(t, srv.URL)
	link, err := c.TopResult(context.Background(), "Klinik")
	require.NoError(t, err)
	require.Equal(t, "https://klinik.ch", link)
	require.Equal(t, 3, hits)
	require.Len(t, *slept, 2)
	for i, d := range *slept {
		attempt := time.Duration(i + 1)
		require.GreaterOrEqual(t, d, attempt*5*time.Second)
		require.LessOrEqual(t, d, attempt*10*time.Second)
	}
}

func TestTopResultGivesUpAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, slept := newTestSearchClient(t, srv.URL)
	_, err := c.TopResult(context.Background(), "Klinik")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Len(t, *slept, 2, "no pause after the final attempt")
}

func TestTopResultDropsBannedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchJSON("https://www.comparis.ch/aerzte/x"))
	}))
	defer srv.Close()

	c, _ := newTestSearchClient(t, srv.URL)
	link, err := c.TopResult(context.Background(), "Klinik")
	require.NoError(t, err)
	require.Empty(t, link)
}

func TestTopResultEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"organic_results":[]}`)
	}))
	defer srv.Close()

	c, _ := newTestSearchClient(t, srv.URL)
	link, err := c.TopResult(context.Background(), "Niemand")
	require.NoError(t, err)
	require.Empty(t, link)
}

func TestIsBanned(t *testing.T) {
	c := NewSearchClient("http://unused", "k", bannedForTest, zap.NewNop())
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.onedoc.ch/de/arzt", true},
		{"https://booking.onedoc.ch/x", true},
		{"https://comparis.ch", true},
		{"https://praxis.ch", false},
		{"https://notonedoc.ch", false},
		{"://bad", true},
		{"", true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, c.IsBanned(tt.url), tt.url)
	}
}

func TestQuery(t *testing.T) {
	require.Equal(t, "Praxis Nord Zürich", Query("Praxis Nord", "Zürich"))
	require.Equal(t, "Praxis Zürich Nord", Query("Praxis Zürich Nord", "Zürich"))
	require.Equal(t, "Praxis Nord", Query("Praxis Nord", ""))
}
