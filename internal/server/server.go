// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects the store, services,
// handlers and middleware, and owns the server lifecycle.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → store (sqlite or postgres)
//	store → AuthService, CalculationService → handlers
//	store + TokenService → auth.RequireUser
//
// Everything is assembled in New, the composition root.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/calculations-api/internal/auth"
	"github.com/sakif/calculations-api/internal/config"
	"github.com/sakif/calculations-api/internal/handler"
	"github.com/sakif/calculations-api/internal/middleware"
	"github.com/sakif/calculations-api/internal/repository"
	"github.com/sakif/calculations-api/internal/repository/postgres"
	sqliteRepo "github.com/sakif/calculations-api/internal/repository/sqlite"
	"github.com/sakif/calculations-api/internal/service"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store. Start closes it on the way out, after the
// HTTP server has drained.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	store    repository.Store
	registry *prometheus.Registry
}

// New creates a Server from cfg. It opens the store, which also applies
// migrations, so a returned error usually means the database is
// unreachable.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		registry: prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(); err != nil {
		store.Close() // Clean up the store if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStore picks Postgres when DATABASE_URL is set and SQLite otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.UsePostgres() {
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		logger.Info("using postgres store")
		return store, nil
	}

	if cfg.DBPath != ":memory:" {
		// os.MkdirAll is `mkdir -p`: a no-op when the directory exists.
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	store, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	logger.Info("using sqlite store", slog.String("path", cfg.DBPath))
	return store, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /register              → create account (public)
//	POST   /login                 → exchange credentials for a token (public)
//	GET    /healthz               → store ping (public)
//	GET    /metrics               → Prometheus exposition (public)
//	GET    /me                    → current user            [auth]
//	POST   /calculations/         → create calculation      [auth]
//	GET    /calculations/         → list own calculations   [auth]
//	GET    /calculations/{id}     → get one                 [auth]
//	PUT    /calculations/{id}     → update one              [auth]
//	DELETE /calculations/{id}     → delete one              [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (read by Logger)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Metrics: counts requests per route pattern
// 5. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	metrics, err := middleware.NewMetrics(s.registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.JWTIssuer, s.config.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordServiceWithCost(s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)

	// Both /calculations and /calculations/ must resolve. StripSlashes
	// rewrites the routing path only, so every pattern below is registered
	// without a trailing slash.
	s.router.Use(chimiddleware.StripSlashes)

	// === DEPENDENCY CHAIN ===
	//   s.store implements repository.Store
	//   services receive the repository interfaces
	//   handlers receive the services
	authService, err := service.NewAuthService(s.store, tokens, passwords, s.logger)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}
	calcService := service.NewCalculationService(s.store, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	calcHandler := handler.NewCalculationHandler(calcService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	// === Public Routes ===
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	// === Authenticated Routes ===
	// RequireUser rejects the request before any of these handlers run.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(tokens, s.store, s.logger))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/calculations", func(r chi.Router) {
			r.Post("/", calcHandler.HandleCreate)
			r.Get("/", calcHandler.HandleList)
			r.Get("/{id}", calcHandler.HandleGet)
			r.Put("/{id}", calcHandler.HandleUpdate)
			r.Delete("/{id}", calcHandler.HandleDelete)
		})
	})

	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         s.config.Address(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
