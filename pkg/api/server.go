// Package api serves the drlog status endpoints: stream stats, the table
// catalog, file sink segments and Prometheus metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/catalog"
)

// Server holds the status server state
type Server struct {
	streams  StatsProvider
	tables   *catalog.Registry
	config   ServerConfig
	metrics  *Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewServer creates a status server. reg receives the HTTP metrics and is
// served on /metrics.
func NewServer(streams StatsProvider, tables *catalog.Registry, config ServerConfig, reg *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if streams == nil {
		streams = NewStatsBoard()
	}
	if tables == nil {
		tables = catalog.NewRegistry()
	}
	return &Server{
		streams:  streams,
		tables:   tables,
		config:   config,
		metrics:  NewMetrics(reg),
		gatherer: reg,
		logger:   logger,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(apiKeyMiddleware(s.config.APIKey))
		}

		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/streams", s.metrics.InstrumentHandler("GET", "/api/v1/streams", s.handleStreams))
		r.Get("/streams/{partition}", s.metrics.InstrumentHandler("GET", "/api/v1/streams/{partition}", s.handleStream))
		r.Get("/tables", s.metrics.InstrumentHandler("GET", "/api/v1/tables", s.handleTables))
		r.Get("/segments", s.metrics.InstrumentHandler("GET", "/api/v1/segments", s.handleSegments))
	})

	return r
}
