package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(":0", nil, zap.NewNop())
	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestProgressSnapshot(t *testing.T) {
	snapshot := func() any {
		return map[string]any{"scraper": "clinics", "pages_processed": 7}
	}
	s := New(":0", snapshot, zap.NewNop())

	rec := get(t, s.Handler(), "/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "clinics", body["scraper"])
	require.EqualValues(t, 7, body["pages_processed"])
}

func TestProgressWithoutSnapshot(t *testing.T) {
	s := New(":0", nil, zap.NewNop())
	rec := get(t, s.Handler(), "/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "{}", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(":0", nil, zap.NewNop())
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}
