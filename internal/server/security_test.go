package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetricsEndpointPathCollision verifies that metrics endpoint paths under /v1/*
// are rejected and fall back to /metrics to prevent auth bypass
func TestMetricsEndpointPathCollision(t *testing.T) {
	for _, configured := range []string{"/v1/pool", "/v1/metrics"} {
		t.Run(configured, func(t *testing.T) {
			srv := New(newMockClient(), &Config{
				MasterKey:       "secret-key",
				MetricsEnabled:  true,
				MetricsEndpoint: configured,
			})

			req := httptest.NewRequest(http.MethodGet, configured, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401 for %s, got %d", configured, rec.Code)
			}

			req2 := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			rec2 := httptest.NewRecorder()
			srv.ServeHTTP(rec2, req2)
			if rec2.Code != http.StatusOK {
				t.Errorf("Expected 200 for /metrics (fallback path), got %d", rec2.Code)
			}
		})
	}

	t.Run("/v10/metrics is allowed (not under /v1/)", func(t *testing.T) {
		srv := New(newMockClient(), &Config{
			MasterKey:       "secret-key",
			MetricsEnabled:  true,
			MetricsEndpoint: "/v10/metrics",
		})

		req := httptest.NewRequest(http.MethodGet, "/v10/metrics", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 for /v10/metrics (allowed path), got %d", rec.Code)
		}
	})
}

// TestBodyLimit checks that API bodies above 1 MiB are rejected
func TestBodyLimit(t *testing.T) {
	srv := New(newMockClient(), &Config{})
	largeBody := strings.Repeat("x", 2*1024*1024)

	t.Run("POST fetch with large body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/fetch", strings.NewReader(largeBody))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("POST with 2MB body should be rejected, got %d", rec.Code)
		}
	})

	t.Run("GET pool with large body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/pool", strings.NewReader(largeBody))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("GET with 2MB body should be rejected, got %d", rec.Code)
		}
	})
}

// TestHealthEndpointNotAffectedByBodyLimit tests that health endpoint
// is not subject to API group body limits
func TestHealthEndpointNotAffectedByBodyLimit(t *testing.T) {
	srv := New(newMockClient(), nil)

	largeBody := strings.Repeat("x", 2*1024*1024)
	req := httptest.NewRequest(http.MethodGet, "/health", strings.NewReader(largeBody))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Health endpoint should not have body limit, got status %d", rec.Code)
	}
}

// TestMetricsEndpointPathTraversal tests that path traversal cannot bypass validation
func TestMetricsEndpointPathTraversal(t *testing.T) {
	t.Run("path traversal to /v1/ is blocked after normalization", func(t *testing.T) {
		srv := New(newMockClient(), &Config{
			MasterKey:       "secret",
			MetricsEnabled:  true,
			MetricsEndpoint: "/foo/../v1/pool",
		})

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected metrics at /metrics after fallback, got %d", rec.Code)
		}

		req2 := httptest.NewRequest(http.MethodGet, "/v1/pool", nil)
		rec2 := httptest.NewRecorder()
		srv.ServeHTTP(rec2, req2)
		if rec2.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for /v1/pool, got %d", rec2.Code)
		}
	})

	t.Run("path traversing away from /v1 is allowed", func(t *testing.T) {
		srv := New(newMockClient(), &Config{
			MasterKey:       "secret",
			MetricsEnabled:  true,
			MetricsEndpoint: "/v1/../admin",
		})

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 for /admin (normalized path is allowed), got %d", rec.Code)
		}
	})
}
