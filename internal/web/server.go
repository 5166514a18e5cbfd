// Package web provides the JSON API served to party attendees.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// Vote requests get a small token bucket; a party's worth of phones stays
// well under it, a misbehaving client does not.
const (
	voteRateLimit = rate.Limit(20)
	voteRateBurst = 40
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr     string
	Handlers *Handlers
	Logger   *zap.Logger
}

// Server is the HTTP server for the vote API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   *zap.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: cfg.Handlers,
		logger:   cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures routes for the API.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handlers.Health)
	s.router.Get("/current", s.handlers.Current)
	s.router.With(RateLimit(voteRateLimit, voteRateBurst)).Post("/vote", s.handlers.Vote)
	s.router.Get("/analytics", s.handlers.Analytics)
	s.router.Get("/leaderboard", s.handlers.Leaderboard)
	s.router.Post("/attribution", s.handlers.Attribution)
}

// Router returns the configured router. Used in tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
