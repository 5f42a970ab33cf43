package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestNormalizeRoute verifies known paths pass through, object lookups
// collapse to a single label, and everything else becomes "other".
func TestNormalizeRoute(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/frame/latest", "/api/v1/frame/latest"},
		{"/api/v1/frame/at", "/api/v1/frame/at"},
		{"/api/v1/sun", "/api/v1/sun"},
		{"/api/v1/catalog/metadata", "/api/v1/catalog/metadata"},
		{"/api/v1/catalog/refresh", "/api/v1/catalog/refresh"},
		{"/api/v1/stream/frames", "/api/v1/stream/frames"},
		{"/api/v1/objects/ISS%20(ZARYA)", "/api/v1/objects/{name}"},
		{"/api/v1/objects/STARLINK-1007", "/api/v1/objects/{name}"},
		{"/api/v1/unknown", "other"},
		{"/wp-admin/setup.php", "other"},
		{"/healthz/extra", "other"},
	}
	for _, c := range cases {
		if got := normalizeRoute(c.path); got != c.want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

// TestMiddlewarePassesThrough verifies the middleware preserves status code
// and body while recording.
func TestMiddlewarePassesThrough(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("brewing"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sun", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "brewing" {
		t.Errorf("body: got %q", rec.Body.String())
	}
}

// TestMiddlewareForwardsFlush verifies a flush inside the handler reaches
// the underlying writer. The middleware sits outermost in the chain, so a
// swallowed flush would buffer every SSE event.
func TestMiddlewareForwardsFlush(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Flusher")
		}
		w.Write([]byte("data: {}\n\n"))
		f.Flush()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/stream/frames", nil))

	if !rec.Flushed {
		t.Fatal("flush did not reach the underlying writer")
	}
}

// TestMetricsEndpoint verifies the Prometheus handler exposes this
// service's collectors.
func TestMetricsEndpoint(t *testing.T) {
	RecordTick(0, 1, 0)
	SetCatalogSize(42)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"spacetracker_tick_duration_seconds",
		"spacetracker_catalog_size",
		"spacetracker_objects_valid",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
