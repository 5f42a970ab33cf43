package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacetracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spacetracker_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	tickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spacetracker_tick_duration_seconds",
			Help:    "Duration of one full simulation tick (propagate, transform, occlude).",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	objectsValid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacetracker_objects_valid",
			Help: "Tracked objects whose last propagation succeeded.",
		},
	)

	objectsStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacetracker_objects_stale",
			Help: "Tracked objects holding a stale position.",
		},
	)

	catalogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacetracker_catalog_size",
			Help: "Element records in the current catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacetracker_catalog_age_seconds",
			Help: "Age of the current catalog since download.",
		},
	)

	frameBufferHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spacetracker_frame_buffer_hits_total",
			Help: "Frame buffer lookups that found a frame.",
		},
	)

	frameBufferMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spacetracker_frame_buffer_misses_total",
			Help: "Frame buffer lookups that missed.",
		},
	)

	streamConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacetracker_stream_connections_total",
			Help: "SSE stream connection events.",
		},
		[]string{"event"},
	)

	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacetracker_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacetracker_streams_active",
			Help: "Currently connected SSE streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		tickDurationSeconds,
		objectsValid,
		objectsStale,
		catalogSize,
		catalogAgeSeconds,
		frameBufferHits,
		frameBufferMisses,
		streamConnections,
		streamErrors,
		streamsActive,
	)
}

// RecordTick records the duration and outcome counts of one simulation tick.
func RecordTick(d time.Duration, valid, stale int) {
	tickDurationSeconds.Observe(d.Seconds())
	objectsValid.Set(float64(valid))
	objectsStale.Set(float64(stale))
}

// SetCatalogSize sets the current catalog record count.
func SetCatalogSize(n int) {
	catalogSize.Set(float64(n))
}

// SetCatalogAge sets the current catalog age in seconds.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// IncFrameBufferHits increments the frame buffer hit counter.
func IncFrameBufferHits() { frameBufferHits.Inc() }

// IncFrameBufferMisses increments the frame buffer miss counter.
func IncFrameBufferMisses() { frameBufferMisses.Inc() }

// IncStreamConnections records a stream connection event ("connect" or
// "disconnect").
func IncStreamConnections(event string) {
	streamConnections.WithLabelValues(event).Inc()
}

// IncStreamErrors records a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrors.WithLabelValues(reason).Inc()
}

// IncStreamsActive increments the active stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the active stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the exact paths this service serves; anything else is
// collapsed to "other" to bound label cardinality against bot traffic.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/frame/latest":     true,
	"/api/v1/frame/at":         true,
	"/api/v1/sun":              true,
	"/api/v1/catalog/metadata": true,
	"/api/v1/catalog/refresh":  true,
	"/api/v1/stream/frames":    true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/objects/") {
		return "/api/v1/objects/{name}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer. This middleware is the outermost
// layer of the chain, so without it SSE events would sit in the server's
// write buffer.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
