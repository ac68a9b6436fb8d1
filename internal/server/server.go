// Package server provides the HTTP server and routing for Folio.
package server

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/httputil"
	activityhandlers "github.com/aristath/folio/internal/modules/activity/handlers"
	authhandlers "github.com/aristath/folio/internal/modules/auth/handlers"
	dashboardhandlers "github.com/aristath/folio/internal/modules/dashboard/handlers"
	investmenthandlers "github.com/aristath/folio/internal/modules/investments/handlers"
	portfoliohandlers "github.com/aristath/folio/internal/modules/portfolios/handlers"
	reporthandlers "github.com/aristath/folio/internal/modules/reports/handlers"
	snapshothandlers "github.com/aristath/folio/internal/modules/snapshots/handlers"
	transactionhandlers "github.com/aristath/folio/internal/modules/transactions/handlers"
	userhandlers "github.com/aristath/folio/internal/modules/users/handlers"
	"github.com/aristath/folio/internal/realtime"
	backuphandlers "github.com/aristath/folio/internal/reliability/handlers"
	jobhandlers "github.com/aristath/folio/internal/scheduler/handlers"
)

// requestTimeout bounds every API request except the websocket stream.
const requestTimeout = 60 * time.Second

// routeRegistrar is implemented by every module handler.
type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
	system    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	// Register common MIME types to ensure correct Content-Type headers for the SPA
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".mjs", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")
	_ = mime.AddExtensionType(".woff2", "font/woff2")
	_ = mime.AddExtensionType(".woff", "font/woff")

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
	}
	s.system = NewSystemHandlers(cfg.Container, cfg.Config.Version, cfg.Log)

	s.setupMiddleware()
	s.setupRoutes()

	// No ReadTimeout/WriteTimeout: deadlines would outlive the websocket hijack.
	// Handlers are bounded by the Timeout middleware instead.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.With(middleware.Timeout(requestTimeout)).Get("/health", s.system.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Websocket stream: long-lived, so no timeout or compression
		r.Group(func(r chi.Router) {
			realtime.NewHandler(c.Hub, c.AuthMiddleware, s.cfg.CORSOrigins, s.log).RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			for _, h := range s.moduleHandlers() {
				h.RegisterRoutes(r)
			}

			r.With(c.AuthMiddleware.Authenticate, c.AuthMiddleware.RequireAdmin).
				Get("/system/status", s.system.HandleStatus)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteMessage(w, s.log, http.StatusNotFound, "not found")
		})
	})

	// Single-page app with index.html fallback
	if s.cfg.StaticDir != "" {
		spa := newSPAHandler(s.cfg.StaticDir, s.log)
		s.router.Group(func(r chi.Router) {
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}
			r.Get("/*", spa.ServeHTTP)
		})
	}
}

func (s *Server) moduleHandlers() []routeRegistrar {
	c := s.container
	mw := c.AuthMiddleware
	log := s.log

	return []routeRegistrar{
		authhandlers.NewHandler(c.AuthService, mw, log),
		userhandlers.NewHandler(c.UserService, mw, log),
		portfoliohandlers.NewHandler(c.PortfolioService, mw, log),
		investmenthandlers.NewHandler(c.InvestmentService, mw, log),
		transactionhandlers.NewHandler(c.TransactionService, mw, log),
		snapshothandlers.NewHandler(c.SnapshotService, mw, log),
		reporthandlers.NewHandler(c.ReportService, mw, log),
		dashboardhandlers.NewHandler(c.DashboardService, mw, log),
		activityhandlers.NewHandler(c.ActivityRepo, mw, log),
		backuphandlers.NewHandler(c.BackupService, mw, log),
		jobhandlers.NewHandler(c.Scheduler, mw, log),
	}
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
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

		evt := s.log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			evt = s.log.Error()
		} else if r.URL.Path == "/health" {
			evt = s.log.Debug()
		}
		evt.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
