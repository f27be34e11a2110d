// Package debughttp serves the daemon's loopback-only diagnostics surface:
// /healthz, /metrics, and /docs. It never binds to anything but localhost —
// this is an operator-facing debug endpoint, not part of the shell IPC
// contract in spec.md §6.1.
package debughttp

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/nudge-sh/nudge/internal/cache"
	"github.com/nudge-sh/nudge/internal/telemetry"
)

// Server is the loopback diagnostics HTTP server.
type Server struct {
	httpServer *http.Server
	version    string
}

// New builds the router and wraps it in an *http.Server bound to addr
// (expected to be a loopback address, e.g. "127.0.0.1:7878").
func New(addr, version string, c *cache.Cache, tel *telemetry.Telemetry) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", handleHealthz(version))
	r.Get("/metrics", handleMetrics(c, tel))
	r.Get("/docs/doc.json", handleOpenAPISpec)
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		version: version,
	}
}

// ListenAndServe blocks serving HTTP until the server is shut down.
// http.ErrServerClosed is swallowed; any other error is returned.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func handleHealthz(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":  "ok",
			"version": version,
			"pid":     os.Getpid(),
		})
	}
}

func handleMetrics(c *cache.Cache, tel *telemetry.Telemetry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"cache_entries": c.Len(),
			"counters":      tel.Snapshot(r.Context()),
		})
	}
}
