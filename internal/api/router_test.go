// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/feedloom/feedloom/internal/config"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	fx := newHandlerFixture(t, mutate)
	return NewRouter(fx.handler, fx.cfg).Setup()
}

func TestRouterRoutes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"feed", "GET", "/api/v1/feed?user_id=u1&feed_type=home", "", http.StatusOK},
		{"feed validation", "GET", "/api/v1/feed?feed_type=home", "", http.StatusBadRequest},
		{"assignment", "GET", "/api/v1/assignment?user_id=u1&feed_type=home", "", http.StatusOK},
		{"experiments", "GET", "/api/v1/experiments", "", http.StatusOK},
		{"force without body", "POST", "/api/v1/experiments/force", "", http.StatusBadRequest},
		{"unforce without params", "DELETE", "/api/v1/experiments/force", "", http.StatusBadRequest},
		{"health", "GET", "/api/v1/health", "", http.StatusOK},
		{"health live", "GET", "/api/v1/health/live", "", http.StatusOK},
		{"health ready", "GET", "/api/v1/health/ready", "", http.StatusOK},
		{"metrics", "GET", "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/nonsense", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "error" || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("Expected NOT_FOUND envelope, got %s", rec.Body.String())
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest("POST", "/api/v1/feed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected status 405, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != ErrCodeMethodNotAllowed {
		t.Errorf("Expected METHOD_NOT_ALLOWED envelope, got %s", rec.Body.String())
	}
}

func TestRouterSecurityHeaders(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/feed?user_id=u1&feed_type=home", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("Expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("Expected DENY, got %q", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got != "strict-origin-when-cross-origin" {
		t.Errorf("Expected strict-origin-when-cross-origin, got %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Expected no HSTS over plain HTTP, got %q", got)
	}
}

func TestRouterHSTSBehindTLSProxy(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=") {
		t.Errorf("Expected HSTS behind TLS proxy, got %q", got)
	}
}

func TestRouterRequestID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	t.Run("generates when absent", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("Expected generated X-Request-ID header")
		}
	})

	t.Run("echoes when present", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", "trace-me-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "trace-me-123" {
			t.Errorf("Expected echoed request ID, got %q", got)
		}

		env := decodeEnvelope(t, rec)
		if env.Metadata.RequestID != "trace-me-123" {
			t.Errorf("Expected request ID in envelope metadata, got %q", env.Metadata.RequestID)
		}
	})
}

func TestRouterCompression(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/feed?user_id=u1&feed_type=home", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Expected gzip encoding, got %q", got)
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("Failed to open gzip reader: %v", err)
	}
	defer gz.Close()
	decompressed, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(decompressed, &env); err != nil {
		t.Fatalf("Failed to decode decompressed envelope: %v", err)
	}
	if env.Status != "success" {
		t.Errorf("Expected success envelope, got %q", env.Status)
	}
}

func TestRouterRateLimitDisabled(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, func(cfg *config.Config) {
		cfg.API.RateLimitDisabled = true
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200 with limiter disabled, got %d", rec.Code)
		}
	}
}

func TestRouterRateLimitEnforced(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, func(cfg *config.Config) {
		cfg.API.RateLimitRequests = 3
	})

	var limited bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/api/v1/experiments", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			env := decodeEnvelope(t, rec)
			if env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
				t.Errorf("Expected TOO_MANY_REQUESTS envelope, got %s", rec.Body.String())
			}
			break
		}
	}
	if !limited {
		t.Error("Expected rate limiter to trip after budget exhaustion")
	}
}

func TestRouterServerTimeouts(t *testing.T) {
	t.Parallel()

	fx := newHandlerFixture(t, nil)
	router := NewRouter(fx.handler, fx.cfg)
	srv := router.Server(fx.cfg.Server)

	if srv.Addr != "127.0.0.1:8420" {
		t.Errorf("Expected addr 127.0.0.1:8420, got %q", srv.Addr)
	}
	if srv.ReadTimeout != fx.cfg.Server.Timeout {
		t.Errorf("Expected read timeout %v, got %v", fx.cfg.Server.Timeout, srv.ReadTimeout)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Error("Expected a read header timeout")
	}
	if srv.Handler == nil {
		t.Error("Expected handler to be set")
	}
}
