package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := RateLimit(100, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected status %d, got %d", i, http.StatusOK, rec.Code)
		}
	}
}

func TestRateLimitRejectsWithErrorShape(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := RateLimit(0.001, 1)
	wrapped := mw(handler)

	first := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", nil)
	req1.RemoteAddr = "10.0.0.2:1234"
	wrapped.ServeHTTP(first, req1)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	wrapped.ServeHTTP(second, req2)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, second.Code)
	}
	if got := second.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
	if !strings.Contains(second.Body.String(), `"error"`) {
		t.Fatalf("expected error shape body, got %q", second.Body.String())
	}
}

func TestRateLimitKeysOnRealIPHeader(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := RateLimit(0.001, 1)
	wrapped := mw(handler)

	req1 := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", nil)
	req1.RemoteAddr = "10.0.0.3:1111"
	req1.Header.Set("X-Real-Ip", "203.0.113.9")
	wrapped.ServeHTTP(httptest.NewRecorder(), req1)

	// Same platform IP behind a different local port still shares the bucket.
	req2 := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", nil)
	req2.RemoteAddr = "10.0.0.4:2222"
	req2.Header.Set("X-Real-Ip", "203.0.113.9")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req2)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
}
