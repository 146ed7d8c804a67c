// Package server provides the HTTP API for Scout.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/documents"
	"github.com/hyperjump/scout/internal/queue"
	"github.com/hyperjump/scout/internal/search"
	"github.com/hyperjump/scout/internal/storage"
	"github.com/hyperjump/scout/internal/vector"
	"go.uber.org/zap"
)

// OwnerHeader carries the caller's owner id. Authentication happens upstream.
const OwnerHeader = "X-Owner-ID"

// Server is the HTTP server for the Scout API.
type Server struct {
	docs    *documents.Service
	engine  *search.Engine
	records storage.Storage
	vectors vector.Store
	queue   queue.Queue
	config  *config.Config
	version string
	logger  *zap.Logger
	started time.Time
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	docs *documents.Service,
	engine *search.Engine,
	records storage.Storage,
	vectors vector.Store,
	q queue.Queue,
	cfg *config.Config,
	version string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		docs:    docs,
		engine:  engine,
		records: records,
		vectors: vectors,
		queue:   q,
		config:  cfg,
		version: version,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the router with all routes and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireOwner)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.handleUpload)
			r.Get("/", s.handleListDocuments)
			r.Delete("/", s.handleDeleteAllDocuments)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})
		r.With(middleware.Compress(5)).Post("/query", s.handleQuery)
		r.Post("/index/rebuild", s.handleRebuild)
		r.Get("/index/stats", s.handleStats)
		r.Get("/system/status", s.handleSystemStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type ownerKey struct{}

// requireOwner rejects requests without an owner id and stores it in the context.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: OwnerHeader + " header is required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey{}).(string)
	return owner
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
