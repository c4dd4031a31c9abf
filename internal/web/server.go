// Package web provides the HTTP API for the service-order import backend.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mkarlsen/opsimport/internal/ingest"
	"github.com/mkarlsen/opsimport/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	service     *ingest.Service
	maxFileSize int64
	router      *chi.Mux
	server      *http.Server
}

// NewServer creates a Server wrapping the given import service.
// maxFileSize caps upload request bodies in bytes.
func NewServer(service *ingest.Service, maxFileSize int64) *Server {
	s := &Server{
		service:     service,
		maxFileSize: maxFileSize,
		router:      chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/template", s.handleTemplate)
		r.Get("/fields", s.handleFields)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Post("/sessions/{sessionID}/commit", s.handleCommit)
		r.Get("/sessions/{sessionID}/progress", s.handleProgress)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // disabled for SSE
		IdleTimeout:  60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
