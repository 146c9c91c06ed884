package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zeenbase/zeenbase/internal/cache"
	"github.com/zeenbase/zeenbase/internal/metrics"
	"github.com/zeenbase/zeenbase/internal/model"
)

type stubLimiter struct {
	result  cache.RateLimitResult
	lastKey string
	lastIP  string
}

func (s *stubLimiter) CheckAPIRateLimit(_ context.Context, keyID string, limit model.RateLimitConfig) *cache.RateLimitResult {
	s.lastKey = keyID
	res := s.result
	res.Limit = limit.RequestsPerMinute
	return &res
}

func (s *stubLimiter) CheckIPRateLimit(_ context.Context, ip string, _, _ int) *cache.RateLimitResult {
	s.lastIP = ip
	res := s.result
	return &res
}

func TestRateLimitAPI(t *testing.T) {
	apiCaller := &model.AuthContext{Identity: model.Identity{ID: "u1"}, KeyID: "k1"}

	t.Run("allowed sets headers", func(t *testing.T) {
		limiter := &stubLimiter{result: cache.RateLimitResult{Allowed: true, Remaining: 99, ResetAt: time.Now().Add(time.Minute)}}
		mw := RateLimitAPI(RateLimitConfig{
			Logger: discardLogger(), Limiter: limiter, APIEnabled: true, APILimit: model.DefaultAPIRateLimit,
		})

		req := withAuth(httptest.NewRequest(http.MethodPost, "/v1/search", nil), apiCaller)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if limiter.lastKey != "k1" {
			t.Errorf("bucket = %q, want k1", limiter.lastKey)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "100" {
			t.Errorf("X-RateLimit-Limit = %q, want 100", got)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != "99" {
			t.Errorf("X-RateLimit-Remaining = %q, want 99", got)
		}
	})

	t.Run("exhausted returns 429", func(t *testing.T) {
		rec := metrics.NewInMemory()
		limiter := &stubLimiter{result: cache.RateLimitResult{Allowed: false, RetryAfter: 1500 * time.Millisecond, ResetAt: time.Now()}}
		mw := RateLimitAPI(RateLimitConfig{
			Logger: discardLogger(), Limiter: limiter, Metrics: rec, APIEnabled: true, APILimit: model.DefaultAPIRateLimit,
		})

		req := withAuth(httptest.NewRequest(http.MethodPost, "/v1/search", nil), apiCaller)
		w := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", w.Code)
		}
		if got := w.Header().Get("Retry-After"); got != "2" {
			t.Errorf("Retry-After = %q, want 2", got)
		}
		if body := decodeErrorBody(t, w); body.Code != "RATE_LIMITED" {
			t.Errorf("code = %q, want RATE_LIMITED", body.Code)
		}
		if got := rec.Snapshot().Searches["api/"+metrics.SearchLimited]; got != 1 {
			t.Errorf("limited searches = %d, want 1", got)
		}
	})

	t.Run("session callers skip the bucket", func(t *testing.T) {
		limiter := &stubLimiter{result: cache.RateLimitResult{Allowed: false}}
		mw := RateLimitAPI(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, APIEnabled: true})

		req := withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/search", nil), &model.AuthContext{Identity: model.Identity{ID: "u1"}})
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		limiter := &stubLimiter{result: cache.RateLimitResult{Allowed: false}}
		mw := RateLimitAPI(RateLimitConfig{Logger: discardLogger(), Limiter: limiter})

		req := withAuth(httptest.NewRequest(http.MethodPost, "/v1/search", nil), apiCaller)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestRateLimitIP(t *testing.T) {
	limiter := &stubLimiter{result: cache.RateLimitResult{Allowed: false, RetryAfter: 200 * time.Millisecond}}
	mw := RateLimitIP(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, IPEnabled: true, IPRPS: 10, IPBurst: 20})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if limiter.lastIP != "203.0.113.7" {
		t.Errorf("ip = %q, want 203.0.113.7", limiter.lastIP)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "remote addr", remoteAddr: "198.51.100.1:4000", want: "198.51.100.1"},
		{name: "forwarded for", remoteAddr: "10.0.0.1:4000", xff: "203.0.113.9, 10.0.0.1", want: "203.0.113.9"},
		{name: "real ip", remoteAddr: "10.0.0.1:4000", xri: "203.0.113.10", want: "203.0.113.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
