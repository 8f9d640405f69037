// Package server provides the HTTP server and routing for Meridian.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/config"
	"github.com/meridianhq/meridian/internal/di"
	anomalyhandlers "github.com/meridianhq/meridian/internal/modules/anomaly/handlers"
	attributionhandlers "github.com/meridianhq/meridian/internal/modules/attribution/handlers"
	budgethandlers "github.com/meridianhq/meridian/internal/modules/budget/handlers"
	contributionhandlers "github.com/meridianhq/meridian/internal/modules/contribution/handlers"
	datasethandlers "github.com/meridianhq/meridian/internal/modules/datasets/handlers"
	incrementalityhandlers "github.com/meridianhq/meridian/internal/modules/incrementality/handlers"
	reporthandlers "github.com/meridianhq/meridian/internal/modules/reports/handlers"
	settingshandlers "github.com/meridianhq/meridian/internal/modules/settings/handlers"
)

// Server is the HTTP front end over the engine services
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
	startedAt time.Time
}

// New creates the HTTP server and wires all routes
func New(cfg *config.Config, container *di.Container, log zerolog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		container: container,
		startedAt: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metricsMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Event fan-out must register before the module routes
		streamHandler := NewEventsStreamHandler(s.container.Bus, s.log)
		r.Get("/events/stream", streamHandler.ServeHTTP)

		wsHandler := NewEventsWSHandler(s.container.Bus, s.log)
		r.Get("/events/ws", wsHandler.ServeHTTP)

		attributionhandlers.NewHandler(s.container.AttributionService, s.log).RegisterRoutes(r)
		contributionhandlers.NewHandler(s.container.ContributionService, s.log).RegisterRoutes(r)
		budgethandlers.NewHandler(s.container.BudgetService, s.log).RegisterRoutes(r)
		incrementalityhandlers.NewHandler(s.container.IncrementalityService, s.log).RegisterRoutes(r)
		anomalyhandlers.NewHandler(s.container.AnomalyService, s.log).RegisterRoutes(r)
		datasethandlers.NewHandler(s.container.DatasetService, s.log).RegisterRoutes(r)
		settingshandlers.NewHandler(s.container.SettingsService, s.log).RegisterRoutes(r)
		reporthandlers.NewHandler(s.container.ReportsRepo, s.log).RegisterRoutes(r)

		systemHandlers := NewSystemHandlers(s.cfg, s.container, s.startedAt, s.log)
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", systemHandlers.HandleStatus)
			r.Get("/info", systemHandlers.HandleInfo)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
