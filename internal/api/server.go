// Package api exposes the simulation core over HTTP: frames for the
// rendering layer, catalog metadata, solar state, and operational probes.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/auth"
	"github.com/jblestang/AISpaceTracker/internal/cache"
	"github.com/jblestang/AISpaceTracker/internal/ephemeris"
	"github.com/jblestang/AISpaceTracker/internal/health"
	"github.com/jblestang/AISpaceTracker/internal/httputil"
	"github.com/jblestang/AISpaceTracker/internal/metrics"
	"github.com/jblestang/AISpaceTracker/internal/propagation"
	"github.com/jblestang/AISpaceTracker/internal/sim"
	"github.com/jblestang/AISpaceTracker/internal/stream"
	"github.com/jblestang/AISpaceTracker/internal/tle"
)

// RefreshFunc forces a catalog re-fetch and population rebuild, returning
// the new record count.
type RefreshFunc func(ctx context.Context) (int, error)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	store   *tle.Store
	engine  *sim.Engine
	buffer  *cache.FrameBuffer
	refresh RefreshFunc
}

// NewServer creates a configured HTTP server.
func NewServer(
	addr string,
	logger *slog.Logger,
	authCfg auth.Config,
	store *tle.Store,
	engine *sim.Engine,
	buffer *cache.FrameBuffer,
	streamHandler *stream.Handler,
	refresh RefreshFunc,
) *Server {
	s := &Server{
		logger:  logger,
		store:   store,
		engine:  engine,
		buffer:  buffer,
		refresh: refresh,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return store.Get() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/frame/latest", s.handleFrameLatest)
	mux.HandleFunc("GET /api/v1/frame/at", s.handleFrameAt)
	mux.HandleFunc("GET /api/v1/sun", s.handleSun)
	mux.HandleFunc("GET /api/v1/catalog/metadata", s.handleCatalogMetadata)
	mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleCatalogRefresh)
	mux.HandleFunc("GET /api/v1/objects/{name}", s.handleObject)
	mux.HandleFunc("GET /api/v1/stream/frames", streamHandler.HandleFrames)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control
// (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the server's handler chain, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleFrameLatest(w http.ResponseWriter, r *http.Request) {
	frame := s.engine.Latest()
	if frame == nil {
		writeError(w, http.StatusServiceUnavailable, "no frame available yet")
		return
	}
	writeJSON(w, frame)
}

func (s *Server) handleFrameAt(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("t")
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid t parameter, expected RFC3339")
		return
	}
	frame := s.buffer.Get(t)
	if frame == nil {
		writeError(w, http.StatusNotFound, "no frame buffered for that time")
		return
	}
	writeJSON(w, frame)
}

func (s *Server) handleSun(w http.ResponseWriter, r *http.Request) {
	now := s.engine.Clock().Now()
	writeJSON(w, map[string]any{
		"time":            now.Format(time.RFC3339),
		"direction":       ephemeris.SunDirection(now),
		"declination_deg": ephemeris.Declination(now) * 180.0 / math.Pi,
	})
}

func (s *Server) handleCatalogMetadata(w http.ResponseWriter, r *http.Request) {
	c := s.store.Get()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "no catalog loaded")
		return
	}
	writeJSON(w, map[string]any{
		"source":      c.Source,
		"fetched_at":  c.FetchedAt.Format(time.RFC3339),
		"age_seconds": s.store.AgeSeconds(),
		"count":       len(c.Records),
	})
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		writeError(w, http.StatusNotImplemented, "refresh not configured")
		return
	}
	count, err := s.refresh(r.Context())
	if err != nil {
		s.logger.Error("catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "catalog refresh failed")
		return
	}
	writeJSON(w, map[string]any{"count": count})
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	obj := s.engine.FindObject(name)
	if obj == nil {
		writeError(w, http.StatusNotFound, "unknown object")
		return
	}

	// State and position come from the published frame, not the live
	// object: the worker pool overwrites those fields on every tick.
	resp := map[string]any{
		"name":     obj.Name,
		"norad_id": obj.NoradID,
		"epoch":    obj.Epoch().Format(time.RFC3339),
		"state":    propagation.StateUninitialized.String(),
	}
	if frame := s.engine.Latest(); frame != nil {
		if of, ok := frame.Object(name); ok {
			resp["state"] = of.State
			resp["position"] = of.Position
		}
	}
	if sp, err := obj.Subpoint(s.engine.Clock().Now()); err == nil {
		resp["subpoint"] = sp
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// probePath returns true for health/readiness probe paths that should not
// log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE streaming works through the
// middleware chain.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) || strings.HasPrefix(r.URL.Path, "/api/v1/frame/") {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, false),
			)
		})
	}
}
