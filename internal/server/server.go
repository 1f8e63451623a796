// Package server exposes the engine's health and metrics surface over
// HTTP. The MCP/stdio tool-call transport itself is the explicitly
// out-of-scope front-end (SPEC_FULL.md §6); this package only serves the
// operational endpoints cmd/fedgatewayd needs for liveness probes and
// Prometheus scraping.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/klistr-labs/fedgatewayd/internal/engine"
	"github.com/klistr-labs/fedgatewayd/internal/health"
)

// Server is the operational HTTP server — /healthz and /metrics only.
// Grounded on klistr's Server{router *chi.Mux}/buildRouter/Start shape
// (internal/server/server.go in the original teacher copy), generalized
// from a full inbound-federation router down to the operational surface
// this engine actually needs, since implementing a fediverse server is an
// explicit Non-goal (spec.md §1).
type Server struct {
	addr      string
	engine    engine.Engine
	promHTTP  http.Handler
	router    *chi.Mux
	startedAt time.Time
}

// New builds a Server bound to addr (":PORT"), delegating health checks to
// eng and metrics scraping to promHTTP (typically
// promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).
func New(addr string, eng engine.Engine, promHTTP http.Handler) *Server {
	if promHTTP == nil {
		promHTTP = promhttp.Handler()
	}
	s := &Server{addr: addr, engine: eng, promHTTP: promHTTP, startedAt: time.Now()}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.promHTTP.ServeHTTP)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, map[string]string{"service": "fedgatewayd", "status": "running"}, http.StatusOK)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	report := s.engine.Health(r.Context())
	status := http.StatusOK
	if report.Overall == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	} else if report.Overall == health.StatusDegraded {
		status = http.StatusOK
	}
	jsonResponse(w, report, status)
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully with a 10s drain window. Grounded on klistr's Start — same
// signal-driven shutdown goroutine, narrowed to this package's own
// *http.Server instance.
func (s *Server) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting operational http server", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
	}
}

func jsonResponse(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}
