// Package web exposes the companion over HTTP: a WebSocket chat
// endpoint streaming pipeline frames, an operational event feed,
// health and version endpoints, and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewithayuu/kira-chan-sub000/internal/buildinfo"
	"github.com/codewithayuu/kira-chan-sub000/internal/events"
	"github.com/codewithayuu/kira-chan-sub000/internal/llm"
	"github.com/codewithayuu/kira-chan-sub000/internal/pipeline"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP surface of the companion.
type Server struct {
	listen       string
	orchestrator *pipeline.Orchestrator
	gateway      *llm.Gateway
	bus          *events.Bus
	logger       *slog.Logger
	server       *http.Server
}

// NewServer creates the server. bus may be nil; the event feed then
// serves nothing but the endpoints still exist.
func NewServer(listen string, orch *pipeline.Orchestrator, gateway *llm.Gateway, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listen:       listen,
		orchestrator: orch,
		gateway:      gateway,
		bus:          bus,
		logger:       logger.With("component", "web"),
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/chat", s.handleChat)
	mux.HandleFunc("GET /ws/events", s.handleEvents)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /v1/providers", s.handleProviders)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withLogging(mux)
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.listen,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: WebSocket sessions are long-lived.
	}
	s.logger.Info("starting web server", "listen", s.listen)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "kira",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if s.gateway != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.gateway.Ping(ctx); err != nil {
			status = fmt.Sprintf("degraded: %v", err)
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"status": status}, s.logger)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		http.Error(w, "no gateway configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"providers": s.gateway.Stats()}, s.logger)
}
