// Package httpserver exposes the search gateway over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/database"
	"github.com/ocabr/observatory/internal/search"
)

// SearchGateway is the query surface the HTTP layer serves.
type SearchGateway interface {
	GetFiltersData(ctx context.Context, req search.FiltersRequest) (*search.FiltersResult, error)
	SearchItem(ctx context.Context, req search.SearchItemRequest) (*search.SearchItemResult, error)
	GetIndicatorData(ctx context.Context, req search.IndicatorDataRequest) (*search.IndicatorData, error)
	JournalTimeseries(ctx context.Context, issn, categoryLevel, year string) (*search.JournalTimeseries, error)
}

// Server is the gateway HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	gateway    SearchGateway
	db         *database.DB
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates the HTTP server with all dependencies.
func NewServer(cfg Config, gateway SearchGateway, db *database.DB, logger zerolog.Logger) *Server {
	s := &Server{
		gateway: gateway,
		db:      db,
		logger:  logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/search_gateway", func(r chi.Router) {
		r.Get("/filters/", s.getFilters)
		r.Get("/search-item/", s.searchItem)
	})
	r.Route("/indicators", func(r chi.Router) {
		r.Post("/data/", s.getIndicatorData)
		r.Get("/journal_metrics/timeseries/", s.getJournalTimeseries)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// healthHandler returns basic liveness status. It deliberately does
// not touch dependencies; readiness does that.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether dependencies can take traffic.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
