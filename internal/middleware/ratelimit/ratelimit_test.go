package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.1.1.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("fourth request should be rejected")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other clients are tracked separately")
	}

	*now = now.Add(30 * time.Second)
	if got := rl.RetryAfter("1.1.1.1"); got != 30 {
		t.Errorf("RetryAfter = %d, want 30", got)
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("still inside the window")
	}

	*now = now.Add(31 * time.Second)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("new window should allow again")
	}

	if m := rl.GetMetrics(); m.Rejected != 2 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 10)
	rl.Allow("1.1.1.1")
	*now = now.Add(5 * time.Minute)
	rl.Allow("2.2.2.2")
	*now = now.Add(6 * time.Minute)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if m := rl.GetMetrics(); m.ClientCount != 1 {
		t.Errorf("ClientCount = %d, want 1", m.ClientCount)
	}
}

func TestMiddlewareOnlyLimitsWrites(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "9.9.9.9" }
	h := rl.Middleware(ip, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("GET %d: status = %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first POST status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/transactions/1", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestStopIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
