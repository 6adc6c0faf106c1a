// Package server provides the HTTP API for mitate recognition and quantization.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/mitate/internal/classifier"
	"github.com/hyperjump/mitate/internal/config"
	"github.com/hyperjump/mitate/internal/histogram"
	"github.com/hyperjump/mitate/internal/keyword"
	"github.com/hyperjump/mitate/internal/models"
	"go.uber.org/zap"
)

// InboxService manages query inbox directories. Implemented by *watcher.Inbox.
type InboxService interface {
	Directories() []string
	AddDirectory(path string, handleExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the mitate API.
type Server struct {
	classifier *classifier.Classifier
	quantizer  *histogram.Quantizer  // optional
	names      *keyword.CatalogIndex // optional
	inbox      InboxService          // optional
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server

	descriptorCounts map[models.ObjectID]int
	startedAt        time.Time
	classified       atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithQuantizer enables POST /api/v1/quantize.
func WithQuantizer(q *histogram.Quantizer) Option {
	return func(s *Server) { s.quantizer = q }
}

// WithCatalogIndex enables object name search.
func WithCatalogIndex(idx *keyword.CatalogIndex) Option {
	return func(s *Server) { s.names = idx }
}

// WithInbox enables the inbox directory endpoints. When configPath is set,
// directory changes are persisted to the config file.
func WithInbox(inbox InboxService, configPath string) Option {
	return func(s *Server) {
		s.inbox = inbox
		s.configPath = configPath
	}
}

// NewServer creates a server around a loaded classifier.
func NewServer(cls *classifier.Classifier, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		classifier:       cls,
		config:           cfg,
		logger:           logger,
		descriptorCounts: make(map[models.ObjectID]int),
		startedAt:        time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	db := cls.Database()
	for i := 0; i < db.Len(); i++ {
		s.descriptorCounts[db.Object(i)]++
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Post("/quantize", s.handleQuantize)
		r.Get("/objects", s.handleListObjects)
		r.Get("/objects/search", s.handleSearchObjects)
		r.Get("/objects/{id}", s.handleGetObject)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = s.newHTTPServer()
	return s.server.ListenAndServe()
}

func (s *Server) newHTTPServer() *http.Server {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.Info("Starting server", zap.String("addr", addr))
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = s.newHTTPServer()
	errc := make(chan error, 1)
	go func() { errc <- s.server.ListenAndServe() }()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
