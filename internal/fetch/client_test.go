package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubChecker struct{ online bool }

func (s stubChecker) Online() bool { return s.online }

// pauseRecorder replaces real sleeping and records the requested delays.
type pauseRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *pauseRecorder) pause(ctx context.Context, d time.Duration) bool {
	p.mu.Lock()
	p.delays = append(p.delays, d)
	p.mu.Unlock()
	return ctx.Err() == nil
}

func newTestClient(cfg Config) (*Client, *pauseRecorder) {
	c := NewClient(cfg, zap.NewNop())
	rec := &pauseRecorder{}
	c.checker = stubChecker{online: true}
	c.pause = rec.pause
	return c, rec
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c, _ := newTestClient(Config{MaxRetries: 3, Timeout: 5 * time.Second})
	res, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(res.Body), "ok")
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newTestClient(Config{MaxRetries: 1, Timeout: 5 * time.Second})
	res, err := c.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/final", res.FinalURL)
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := 100 * time.Millisecond
	c, rec := newTestClient(Config{
		MaxRetries: 3,
		Timeout:    5 * time.Second,
		RetryDelay: base,
	})

	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")

	mu.Lock()
	require.Equal(t, 3, hits, "exactly the configured number of attempts")
	mu.Unlock()

	// Backoff schedule is base, 2*base; jitter pauses are zero-valued here.
	var backoffs []time.Duration
	for _, d := range rec.delays {
		if d > 0 {
			backoffs = append(backoffs, d)
		}
	}
	require.Equal(t, []time.Duration{base, 2 * base}, backoffs)
}

func TestFetchOfflineGivesUpAfterRecheck(t *testing.T) {
	c, rec := newTestClient(Config{MaxRetries: 3, RetryDelay: time.Second})
	c.checker = stubChecker{online: false}

	_, err := c.Fetch(context.Background(), "http://unreachable.invalid/")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no connectivity")
	require.Len(t, rec.delays, 1, "one wait between the two connectivity checks")
}

func TestFetchCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestClient(Config{MaxRetries: 3, RetryDelay: time.Second})
	_, err := c.Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestJitterWithinBounds(t *testing.T) {
	c := NewClient(Config{MinDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond}, zap.NewNop())
	for i := 0; i < 100; i++ {
		d := c.jitter()
		require.GreaterOrEqual(t, d, 10*time.Millisecond)
		require.Less(t, d, 20*time.Millisecond)
	}
}

func TestTimerPauseHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	require.False(t, timerPause(ctx, 5*time.Second))
	require.Less(t, time.Since(start), time.Second)
}
