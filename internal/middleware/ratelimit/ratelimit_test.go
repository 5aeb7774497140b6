package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, n int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerWindow: n, Window: time.Minute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	clock := time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("fourth request in the window allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("another client was limited")
	}

	if got := rl.RetryAfter("10.0.0.1"); got != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", got)
	}

	*clock = clock.Add(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("request after the window rejected")
	}

	m := rl.GetMetrics()
	if m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v, want 1 rejected, 2 clients", m)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 5)
	rl.Allow("10.0.0.1")
	*clock = clock.Add(5 * time.Minute)
	rl.Allow("10.0.0.2")
	*clock = clock.Add(6 * time.Minute)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if got := rl.GetMetrics().ClientCount; got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(
		func(*http.Request) string { return "10.0.0.1" },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "61" {
		t.Errorf("Retry-After = %q, want 61", rr.Header().Get("Retry-After"))
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
	if rl.limit != 60 || rl.window != time.Minute {
		t.Errorf("defaults not applied: limit=%d window=%v", rl.limit, rl.window)
	}
}
