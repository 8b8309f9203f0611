// Package server provides the HTTP API for the assistant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/examples"
	"github.com/hyperjump/shitsumon/internal/indexer"
	"github.com/hyperjump/shitsumon/internal/keyword"
	"github.com/hyperjump/shitsumon/internal/lexicon"
	"github.com/hyperjump/shitsumon/internal/pipeline"
	"github.com/hyperjump/shitsumon/internal/schema"
	"github.com/hyperjump/shitsumon/internal/search"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// HistorySearcher finds history records by text.
type HistorySearcher interface {
	Search(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]*keyword.Hit, error)
}

// Deps are the services the API exposes. HistoryIndex may be nil, which disables
// history search.
type Deps struct {
	Assistant    *pipeline.Assistant
	Terms        *lexicon.Manager
	Examples     *examples.Bank
	Schema       *schema.Enhancer
	Indexer      *indexer.Indexer
	Retriever    *search.Retriever
	Store        *storage.Store
	HistoryIndex HistorySearcher
}

// Server is the HTTP server for the assistant API.
type Server struct {
	deps   Deps
	config *config.ServerConfig
	logger *zap.Logger

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	timeout := s.config.RequestLimit
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/ask", s.handleAsk)
		r.Post("/execute", s.handleExecute)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistoryList)
			r.Get("/stats", s.handleHistoryStats)
			r.Get("/search", s.handleHistorySearch)
		})
		r.Route("/terms", func(r chi.Router) {
			r.Get("/", s.handleTermsList)
			r.Post("/", s.handleTermsAdd)
			r.Post("/normalize", s.handleTermsNormalize)
			r.Put("/{id}", s.handleTermsUpdate)
			r.Delete("/{id}", s.handleTermsDelete)
		})
		r.Route("/examples", func(r chi.Router) {
			r.Get("/", s.handleExamplesList)
			r.Post("/", s.handleExamplesAdd)
			r.Delete("/{id}", s.handleExamplesDelete)
		})
		r.Get("/schema", s.handleSchema)
		r.Put("/schema/columns", s.handleSchemaColumns)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleDocumentsList)
			r.Post("/", s.handleDocumentsAdd)
			r.Get("/search", s.handleDocumentsSearch)
			r.Delete("/{id}", s.handleDocumentsDelete)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.stopped = true
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
