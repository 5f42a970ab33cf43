// Package stream implements Server-Sent Events (SSE) streaming of
// simulation frames. Clients connect via GET /api/v1/stream/frames and
// receive one frame per tick: scene-space positions, visibility flags, the
// sun direction and the terminator polyline.
//
// SSE message format:
//
//	data: {"type":"frame","time":"...","sun":{...},"objects":[...]}\n\n
//
// The first message is always metadata:
//
//	data: {"type":"metadata","catalog_source":"...","catalog_age_seconds":1800,"object_count":9400}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while no new
// frame is available.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/cache"
	"github.com/jblestang/AISpaceTracker/internal/httputil"
	"github.com/jblestang/AISpaceTracker/internal/metrics"
	"github.com/jblestang/AISpaceTracker/internal/sim"
	"github.com/jblestang/AISpaceTracker/internal/tle"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrentTotal int           // Max concurrent streams process-wide (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	PollInterval       time.Duration // How often to check for a new frame (default: 250ms).
	TrustProxy         bool          // Honor X-Forwarded-For for client IPs.
}

// Handler manages SSE streaming connections.
type Handler struct {
	buffer  *cache.FrameBuffer
	store   *tle.Store
	config  Config
	limiter *connLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(buffer *cache.FrameBuffer, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.MaxConcurrentTotal <= 0 {
		config.MaxConcurrentTotal = 1000
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 250 * time.Millisecond
	}
	return &Handler{
		buffer:  buffer,
		store:   store,
		config:  config,
		limiter: newConnLimiter(config.MaxConcurrentPerIP, config.MaxConcurrentTotal),
		logger:  logger,
	}
}

type metadataEvent struct {
	Type              string  `json:"type"`
	CatalogSource     string  `json:"catalog_source"`
	CatalogAgeSeconds float64 `json:"catalog_age_seconds"`
	ObjectCount       int     `json:"object_count"`
}

type frameEvent struct {
	Type string `json:"type"`
	*sim.FrameState
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream/frames
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		metrics.IncStreamErrors("no_flusher")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if ok, reason := h.limiter.acquire(ip); !ok {
		metrics.IncStreamErrors(reason)
		h.logger.Warn("stream limit reached",
			"remote_ip", ip,
			"reason", reason,
			"active_ip", h.limiter.active(ip),
			"active_total", h.limiter.activeTotal(),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}
	defer h.limiter.release(ip)

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	defer metrics.DecStreamsActive()
	defer metrics.IncStreamConnections("disconnect")

	start := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip)
	defer func() {
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_s", time.Since(start).Seconds(),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.writeMetadata(w); err != nil {
		metrics.IncStreamErrors("write")
		return
	}
	flusher.Flush()

	poll := time.NewTicker(h.config.PollInterval)
	defer poll.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	var lastSent time.Time
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				metrics.IncStreamErrors("write")
				return
			}
			flusher.Flush()
		case <-poll.C:
			frame := h.buffer.Latest()
			if frame == nil || !frame.Time.After(lastSent) {
				continue
			}
			if err := writeEvent(w, frameEvent{Type: "frame", FrameState: frame}); err != nil {
				metrics.IncStreamErrors("write")
				return
			}
			flusher.Flush()
			lastSent = frame.Time
		}
	}
}

func (h *Handler) writeMetadata(w http.ResponseWriter) error {
	meta := metadataEvent{Type: "metadata"}
	if c := h.store.Get(); c != nil {
		meta.CatalogSource = c.Source
		meta.CatalogAgeSeconds = h.store.AgeSeconds()
		meta.ObjectCount = len(c.Records)
	}
	return writeEvent(w, meta)
}

func writeEvent(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
