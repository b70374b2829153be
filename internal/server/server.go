// Package server provides the HTTP API for Kusuri.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/kusuri/internal/config"
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/recommend"
	"github.com/hyperjump/kusuri/internal/snapshot"
	"github.com/hyperjump/kusuri/pkg/utils"
)

// SnapshotHolder serves and reloads the dataset snapshot. *snapshot.Holder implements it.
type SnapshotHolder interface {
	Current() *snapshot.Snapshot
	Reload() (*snapshot.Snapshot, error)
}

// Server is the HTTP server for the Kusuri API.
type Server struct {
	engine   *recommend.Engine
	holder   SnapshotHolder
	config   *config.Config
	defaults models.RequestDefaults
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *recommend.Engine, holder SnapshotHolder, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		engine:   engine,
		holder:   holder,
		config:   cfg,
		defaults: cfg.Recommend.RequestDefaults(),
		logger:   utils.OrNop(logger),
	}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleWelcome)
	r.Post("/recommend", s.handleRecommendLegacy)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommend", s.handleRecommend)
		r.Get("/medicines", s.handleListMedicines)
		r.Get("/medicines/{name}", s.handleGetMedicine)
		r.Get("/status", s.handleStatus)
		r.Post("/reload", s.handleReload)
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
