// Package web provides the HTTP API for the import engine.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/tabimport/internal/config"
	"github.com/JonMunkholm/tabimport/internal/core"
	webmw "github.com/JonMunkholm/tabimport/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	metrics  http.Handler
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance. metrics serves /metrics and may
// be nil.
func NewServer(service *core.Service, cfg *config.Config, metrics http.Handler) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	if len(s.cfg.Security.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Security.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
			ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Security hardening
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(webmw.RateLimit(s.cfg.Rate.RequestsPerMinute))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	// Everything else needs an API key when one is required.
	s.router.Group(func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))

		r.Route("/api", func(r chi.Router) {
			r.Get("/tables", s.handleListTables)
			r.Get("/tables/{name}", s.handleGetTable)

			r.Route("/sessions", func(r chi.Router) {
				r.With(s.importRateLimit()).Post("/", s.handleCreateSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Delete("/", s.handleDeleteSession)

					// Mapping
					r.Post("/automap", s.handleAutoMap)
					r.Put("/mappings", s.handleSetMappings)
					r.Post("/apply-template/{templateID}", s.handleApplyTemplate)
					r.Get("/templates", s.handleMatchTemplates)

					// Row data
					r.Get("/rows", s.handleGetRows)
					r.Put("/rows", s.handleUpdateRows)
					r.Patch("/cells", s.handleUpdateCell)

					// Validation and import
					r.Post("/validate", s.handleValidate)
					r.With(s.importRateLimit()).Post("/import", s.handleStartImport)
					r.Post("/cancel", s.handleCancelImport)
					r.Get("/result", s.handleImportResult)
					r.Get("/report.csv", s.handleErrorReport)
				})
			})

			r.Get("/audit-log", s.handleAuditLog)
			r.Get("/import-queue", s.handleImportQueueStatus)
		})

		// Template API
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})
	})
}

// importRateLimit returns the stricter limiter for upload and import
// endpoints.
func (s *Server) importRateLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return webmw.RateLimit(s.cfg.Rate.ImportLimit)
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

	slog.Info("starting server", "addr", s.server.Addr)
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

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// The API serves no documents
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
