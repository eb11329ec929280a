// Package status serves the operational endpoints of a running crawl:
// liveness, Prometheus metrics and a JSON progress snapshot.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/metrics"
)

// SnapshotFunc returns the current progress view. It is called on every
// /progress request and must be safe for concurrent use.
type SnapshotFunc func() any

// Server is the embedded status HTTP server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New builds a status server on addr. snapshot may be nil, in which
// case /progress serves an empty object.
func New(addr string, snapshot SnapshotFunc, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body any = struct{}{}
		if snapshot != nil {
			body = snapshot()
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Warn("encode progress snapshot", zap.Error(err))
		}
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a background goroutine and returns immediately.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", zap.Error(err))
		}
	}()
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
