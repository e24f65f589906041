package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request should be blocked")
	}

	// Another client has its own budget.
	if !rl.Allow("5.6.7.8") {
		t.Error("separate clients must not share a counter")
	}

	if rl.ActiveClients() != 2 {
		t.Errorf("expected 2 tracked clients, got %d", rl.ActiveClients())
	}
}

func TestLimiter_DefaultsOnBadConfig(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: -1})
	defer rl.Stop()

	if !rl.Allow("1.2.3.4") {
		t.Error("defaulted limiter should allow the first request")
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(
		func(r *http.Request) string { return "1.2.3.4" },
		func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path string) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	if got := do("/api/triggers"); got != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", got)
	}
	if got := do("/api/triggers"); got != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", got)
	}
	// Skipped paths bypass the limiter entirely.
	if got := do("/healthz"); got != http.StatusOK {
		t.Fatalf("skipped path expected 200, got %d", got)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
