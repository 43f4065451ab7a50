// Package server provides the HTTP API an external optimizer drives evaluation through.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/corpus"
	"github.com/hyperjump/tansaku/internal/evaluator"
)

// Snapshot is an immutable corpus together with the evaluator that scores its rows.
type Snapshot struct {
	Corpus    *corpus.Corpus
	Evaluator evaluator.Evaluator
}

// Server is the HTTP server for the tansaku API.
type Server struct {
	snapshot atomic.Pointer[Snapshot]
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server

	runsMu sync.Mutex
	runs   map[string]*run
	runTTL time.Duration
	now    func() time.Time
}

const defaultRunTTL = time.Hour

// NewServer creates a server serving snap.
func NewServer(snap *Snapshot, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.RunTTL
	if ttl <= 0 {
		ttl = defaultRunTTL
	}
	s := &Server{
		config: cfg,
		logger: logger,
		runs:   make(map[string]*run),
		runTTL: ttl,
		now:    time.Now,
	}
	s.snapshot.Store(snap)
	return s
}

// Swap replaces the served corpus. Runs created earlier keep evaluating against the corpus
// they started with.
func (s *Server) Swap(snap *Snapshot) {
	old := s.snapshot.Swap(snap)
	s.logger.Info("corpus swapped",
		zap.Int("old_rows", old.Corpus.Len()),
		zap.Int("new_rows", snap.Corpus.Len()),
	)
}

// Current returns the snapshot new requests are served from.
func (s *Server) Current() *Snapshot {
	return s.snapshot.Load()
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/index", s.handleIndex)
		r.Post("/search", s.handleSearch)
		r.Get("/history", s.handleHistory)
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/runs/{id}/evaluate", s.handleEvaluate)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
