// Package health exposes batch progress and Prometheus metrics over
// HTTP while a run is in flight.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genefetch/internal/batch/orchestrator"
	"genefetch/internal/infra/cache"
	"genefetch/internal/infra/ratelimit"
)

// Sources are the live views the server reads on each request. All
// of them must be safe for concurrent use.
type Sources struct {
	Progress func() orchestrator.Progress
	Limiter  *ratelimit.Limiter
	Cache    *cache.Cache
}

// Server provides HTTP endpoints for run monitoring.
type Server struct {
	sources Sources
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(sources Sources, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		sources: sources,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the routing mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	p := s.sources.Progress()

	status := "running"
	if p.Total > 0 && p.Completed == p.Total {
		status = "done"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"completed": p.Completed,
		"total":     p.Total,
	})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := struct {
		Progress orchestrator.Progress      `json:"progress"`
		Limiter  map[string]ratelimit.Stats `json:"rate_limits"`
		Cache    cache.Stats                `json:"cache"`
	}{
		Progress: s.sources.Progress(),
		Limiter:  s.sources.Limiter.Stats(),
		Cache:    s.sources.Cache.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
