// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/sweeper/internal/application"
	"github.com/jobrunner/sweeper/internal/config"
	"github.com/jobrunner/sweeper/internal/ports/input"
)

// MetricsExporter instruments requests and serves the collected metrics.
type MetricsExporter interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Services bundles the application services exposed over HTTP.
type Services struct {
	Conversion input.ConversionService
	WorkAreas  input.WorkAreaService
	Registry   input.MapRegistry
	Health     *application.HealthService
	Sync       *application.SyncService // nil disables POST /api/v1/sync
	Metrics    MetricsExporter          // nil disables HTTP metrics
	// MetricsPath mounts the metrics handler on the API router when set.
	MetricsPath string
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	conversion  input.ConversionService
	workAreas   input.WorkAreaService
	registry    input.MapRegistry
	health      *application.HealthService
	syncService *application.SyncService
	metrics     MetricsExporter
	metricsPath string
	limiter     *rateLimiter
	origins     originPolicy
	preflight   []preflightRoute
	openAPIOnce sync.Once
	openAPI     []byte
	openAPIErr  error
	logger      *slog.Logger
	config      config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, svc Services, logger *slog.Logger) *Server {
	s := &Server{
		conversion:  svc.Conversion,
		workAreas:   svc.WorkAreas,
		registry:    svc.Registry,
		health:      svc.Health,
		syncService: svc.Sync,
		metrics:     svc.Metrics,
		metricsPath: svc.MetricsPath,
		logger:      logger,
		config:      cfg,
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	// CORS headers and preflights for configured origins
	if s.config.CORS.Enabled() {
		s.origins = newOriginPolicy(s.config.CORS.AllowedOrigins)
		r.Use(s.corsMiddleware)
		r.Methods(http.MethodOptions).HandlerFunc(s.handlePreflight)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()
	if s.limiter != nil {
		api.Use(s.rateLimitMiddleware)
	}

	// Conversion endpoints
	api.HandleFunc("/convert", s.handleConvert).Methods(http.MethodGet)
	api.HandleFunc("/convert", s.handleConvertBatch).Methods(http.MethodPost)
	api.HandleFunc("/centroid", s.handleCentroid).Methods(http.MethodPost)

	// Work area endpoints
	api.HandleFunc("/workareas", s.handleListWorkAreas).Methods(http.MethodGet)
	api.HandleFunc("/workareas", s.handleCreateWorkArea).Methods(http.MethodPost)
	api.HandleFunc("/workareas/{id}", s.handleGetWorkArea).Methods(http.MethodGet)
	api.HandleFunc("/workareas/{id}", s.handleUpdateWorkArea).Methods(http.MethodPut)
	api.HandleFunc("/workareas/{id}", s.handleDeleteWorkArea).Methods(http.MethodDelete)
	api.HandleFunc("/workareas/{id}/center", s.handleWorkAreaCenter).Methods(http.MethodGet)
	api.HandleFunc("/workareas/{id}/geojson", s.handleWorkAreaGeoJSON).Methods(http.MethodGet)

	// Map registry endpoints
	api.HandleFunc("/maps", s.handleListMaps).Methods(http.MethodGet)
	api.HandleFunc("/maps/{mapId}", s.handleGetMap).Methods(http.MethodGet)

	// Sync endpoint (only if sync service is configured)
	if s.syncService != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	}

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)
	r.HandleFunc("/swagger", s.handleSwaggerUI).Methods(http.MethodGet)

	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	// Frontend for conversions (if enabled)
	if s.config.FrontendEnabled {
		r.HandleFunc("/", s.handleFrontend).Methods(http.MethodGet)
	}

	if s.config.CORS.Enabled() {
		s.preflight = preflightRoutes(r)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				s.writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
