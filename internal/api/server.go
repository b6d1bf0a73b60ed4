package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/api/handlers"
	"github.com/arynyklas/HDRFilmsBot/internal/api/middleware"
	"github.com/arynyklas/HDRFilmsBot/internal/config"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	db       *models.Database
	caches   handlers.CacheSizer
	info     handlers.InfoLookup
	gatherer prometheus.Gatherer
	logger   *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, caches handlers.CacheSizer, info handlers.InfoLookup, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	s := &Server{
		db:       db,
		caches:   caches,
		info:     info,
		gatherer: gatherer,
		logger:   logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux, cfg)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger, "/health", "/metrics"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, cfg *config.Config) {
	healthHandler := handlers.NewHealthHandler(s.db.Ping, s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(s.db, s.caches, cfg.MaxFileUploadSize, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	infoHandler := handlers.NewInfoHandler(s.info, s.db, s.logger)
	mux.HandleFunc("/info", infoHandler.ServeHTTP)

	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
