package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func protected() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestMiddlewareDisabled verifies all paths pass when auth is off.
func TestMiddlewareDisabled(t *testing.T) {
	handler := Middleware(Config{})(protected())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/catalog/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("disabled auth: got %d", rec.Code)
	}
}

// TestMiddlewareEnforcesToken verifies the Bearer token check on guarded
// paths.
func TestMiddlewareEnforcesToken(t *testing.T) {
	handler := Middleware(Config{Enabled: true, Token: "sekrit"})(protected())

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic sekrit", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"correct", "Bearer sekrit", http.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest("POST", "/api/v1/catalog/refresh", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != c.want {
			t.Errorf("%s: got %d, want %d", c.name, rec.Code, c.want)
		}
	}
}

// TestExemptPaths verifies probes, reads and the stream stay public with
// auth enabled.
func TestExemptPaths(t *testing.T) {
	handler := Middleware(Config{Enabled: true, Token: "sekrit"})(protected())

	for _, path := range []string{
		"/healthz",
		"/readyz",
		"/metrics",
		"/api/v1/catalog/metadata",
		"/api/v1/frame/latest",
		"/api/v1/sun",
		"/api/v1/objects/ISS",
		"/api/v1/stream/frames",
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: got %d, want 200", path, rec.Code)
		}
	}
}
