// Package api exposes the asylum stories services over REST.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/asylumproject/asylum-server/internal/http/response"
	"github.com/asylumproject/asylum-server/internal/ratelimit"
	"github.com/asylumproject/asylum-server/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	Version        string
	AllowedOrigins []string

	// Files serves the local object store under /files. Nil when objects
	// live in a cloud bucket.
	Files http.Handler

	// Auth endpoints allow AuthRate requests per AuthInterval per client IP.
	AuthRate     int
	AuthInterval time.Duration
	AuthBurst    int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       store.Store
	services    *Services
	router      *chi.Mux
	api         huma.API
	authLimiter *ratelimit.Limiter
	logger      *slog.Logger
}

// NewServer creates the router, registers every route and returns the
// server ready to serve.
func NewServer(st store.Store, services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.AuthRate <= 0 {
		opts.AuthRate, opts.AuthInterval, opts.AuthBurst = 20, time.Minute, 10
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		store:       st,
		services:    services,
		router:      chi.NewRouter(),
		authLimiter: ratelimit.New(opts.AuthRate, opts.AuthInterval, opts.AuthBurst),
		logger:      logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(opts.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(s.limitAuthRoutes)
	s.router.Use(authMiddleware(services.Auth))
	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route not found", nil)
	})

	s.api = humachi.New(s.router, newHumaConfig(opts.Version))
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerReferenceRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerAdminUserRoutes()
	s.registerStoryRoutes()
	s.registerMapPointRoutes()
	s.registerElementRoutes()
	s.registerUploadRoutes()
	s.registerTagRoutes()
	s.registerSharingRoutes()
	s.registerSearchRoutes()
	s.registerEventRoutes()
	s.registerReportRoutes()
	s.registerBackupRoutes()

	if opts.Files != nil {
		s.router.Handle("/files/*", http.StripPrefix("/files", opts.Files))
	}

	return s
}

func newHumaConfig(version string) huma.Config {
	cfg := huma.DefaultConfig("Asylum Stories API", version)
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	cfg.Transformers = append(cfg.Transformers, EnvelopeTransformer)
	return cfg
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.authLimiter.Stop()
}

// limitAuthRoutes applies the per-IP limiter to everything under
// /api/v1/auth/.
func (s *Server) limitAuthRoutes(next http.Handler) http.Handler {
	limited := s.authLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("rate limit exceeded", "ip", ratelimit.ClientIP(r), "path", r.URL.Path)
		response.TooManyRequests(w, "too many requests, try again later", nil)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/v1/auth/") && r.Method != http.MethodGet {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// requestLogger logs one line per request once it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
