package middleware

import (
	"testing"
	"time"
)

func TestKeyRateLimiterAllowsWithinBudget(t *testing.T) {
	limiter := NewKeyRateLimiter(2, time.Minute, 2, time.Minute)

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("expected burst to be allowed")
	}
	if limiter.Allow("a") {
		t.Fatal("expected third request to be limited")
	}
	// Separate keys have separate budgets.
	if !limiter.Allow("b") {
		t.Fatal("expected fresh key to be allowed")
	}
}

func TestKeyRateLimiterExpiresVisitors(t *testing.T) {
	limiter := NewKeyRateLimiter(1, time.Minute, 1, 10*time.Millisecond).(*keyRateLimiter)

	base := time.Now()
	limiter.now = func() time.Time { return base }
	if !limiter.Allow("a") {
		t.Fatal("expected first request allowed")
	}

	limiter.now = func() time.Time { return base.Add(time.Second) }
	limiter.Allow("gc-trigger")

	limiter.mu.Lock()
	_, stillThere := limiter.visitors["a"]
	limiter.mu.Unlock()
	if stillThere {
		t.Fatal("expected expired visitor to be collected")
	}
}

func TestKeyRateLimiterEmptyKey(t *testing.T) {
	limiter := NewKeyRateLimiter(1, time.Minute, 1, time.Minute)
	if !limiter.Allow("") {
		t.Fatal("expected empty key to fall back to a shared bucket")
	}
	if limiter.Allow("") {
		t.Fatal("expected shared bucket to be limited")
	}
}
