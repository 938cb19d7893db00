// Package api provides the HTTP API server and handlers for directory browsing and watch control.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/dirwatch/internal/browser"
	"github.com/listenupapp/dirwatch/internal/feed"
	"github.com/listenupapp/dirwatch/internal/monitor"
	"github.com/listenupapp/dirwatch/internal/ratelimit"
	"github.com/listenupapp/dirwatch/internal/sse"
	"github.com/listenupapp/dirwatch/internal/validation"
	"github.com/listenupapp/dirwatch/internal/watcher"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Deps are the components the HTTP surface drives.
type Deps struct {
	Controller   *watcher.Controller
	Builder      *browser.Builder
	Monitor      *monitor.Monitor
	Feed         *feed.Queue
	SSEManager   *sse.Manager
	Validator    *validation.Validator
	ControlLimit *ratelimit.KeyedRateLimiter
	// StartPath is browsed when no path is given and nothing was browsed yet.
	StartPath string
	// AllowedOrigins configures CORS. Empty disables CORS headers.
	AllowedOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	router *chi.Mux
	api    huma.API
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		Deps:   deps,
		router: router,
		logger: logger.With("component", "api"),
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("dirwatch API", Version)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerFilesystemRoutes()
	s.registerWatchRoutes()

	// The stream is a long-lived response; it bypasses huma.
	router.Get("/api/v1/watch/stream", sse.NewHandler(deps.SSEManager, deps.Monitor.Status, logger).ServeHTTP)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, used by tests and the OpenAPI dump.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if len(s.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}
