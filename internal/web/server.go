// Package web provides the HTTP server for loading, previewing, saving and
// exporting trace tables.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tracesynth/internal/config"
	"github.com/JonMunkholm/tracesynth/internal/core"
	"github.com/JonMunkholm/tracesynth/internal/web/middleware"
)

// ErrNoDatabase is returned by database routes when the server has none.
var ErrNoDatabase = errors.New("database not configured")

// Database copies tables to and from database tables.
type Database interface {
	Export(ctx context.Context, name string, t *core.Table) (int64, error)
	Import(ctx context.Context, name string) (*core.Table, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the trace synthesizer.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	limiter  *core.Limiter
	db       Database
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server. db may be nil, in which case export and
// import requests fail with 503.
func NewServer(cfg *config.Config, logger *slog.Logger, db Database) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		limiter:  core.NewLimiter(cfg.Save.MaxConcurrent, cfg.Save.MaxWaitTime),
		db:       db,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	trusted, err := middleware.ParseTrustedProxies(s.cfg.Server.TrustedProxies)
	if err != nil {
		s.logger.Warn("some trusted proxies were skipped", "error", err)
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(trusted))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	// Security hardening
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/tables/view", s.handleTableView)

	// API routes
	s.router.Route("/api/tables", func(r chi.Router) {
		r.Get("/", s.handleDescribeTable)
		r.Post("/save", s.handleSaveTable)
		r.Post("/upload", s.handleUploadTable)
		r.Post("/export", s.handleExportTable)
		r.Post("/import", s.handleImportTable)
	})
	s.router.Get("/api/traces", s.handleTraces)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown waits for in-flight saves to finish, then stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if status := s.limiter.Status(); status.Active > 0 {
		s.logger.Info("waiting for saves to complete", "active", status.Active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			s.logger.Warn("saves did not complete in time", "error", err)
		} else {
			s.logger.Info("all saves completed")
		}
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// SaveStatus reports the save limiter's current load.
func (s *Server) SaveStatus() core.LimiterStatus {
	return s.limiter.Status()
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// The preview page is static HTML with inline styles only
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")

		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w with the given status.
// Logs encoding errors since headers are already sent.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("json encode error", "error", err)
	}
}
