// Package server provides the HTTP API for Carspire.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"carspire/config"
	"carspire/internal/port"
	"carspire/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP server for the Carspire API.
type Server struct {
	learn    *usecase.LearnUseCase
	chat     *usecase.ChatUseCase
	store    port.KnowledgeStore
	model    string
	config   config.ServerConfig
	retrieve config.RetrieveConfig
	logger   *zap.Logger
	now      func() time.Time
	server   *http.Server
}

// NewServer creates a server with the given dependencies. model is the chat
// model name reported by the health endpoint.
func NewServer(
	learn *usecase.LearnUseCase,
	chat *usecase.ChatUseCase,
	store port.KnowledgeStore,
	model string,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		learn:    learn,
		chat:     chat,
		store:    store,
		model:    model,
		config:   cfg.Server,
		retrieve: cfg.Retrieve,
		logger:   logger,
		now:      time.Now,
	}
}

// Handler returns the routed handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())
	if s.config.RateLimit > 0 && s.config.RateWindow > 0 {
		r.Use(s.rateLimiter())
	}
	if s.config.MaxInFlight > 0 {
		r.Use(middleware.Throttle(s.config.MaxInFlight))
	}
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Post("/learn", s.handleLearn)
		r.Post("/chat", s.handleChat)
	})
	return r
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("addr", addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
