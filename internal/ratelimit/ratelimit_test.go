package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()
	l := newLimiter(3)

	for i := range 3 {
		r := l.Allow()
		if !r.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	r := l.Allow()
	if r.Allowed {
		t.Error("4th request should be denied")
	}
	if r.RetryAfterSeconds <= 0 {
		t.Error("RetryAfterSeconds should be positive")
	}
}

func TestLimiter_RefillAfterTime(t *testing.T) {
	t.Parallel()
	l := newLimiter(1)

	if r := l.Allow(); !r.Allowed {
		t.Fatal("first request should be allowed")
	}
	if r := l.Allow(); r.Allowed {
		t.Fatal("second request should be denied")
	}

	// Manually advance the bucket's last fill time.
	l.mu.Lock()
	l.bucket.lastFill = time.Now().Add(-61 * time.Second)
	l.mu.Unlock()

	if r := l.Allow(); !r.Allowed {
		t.Error("request should be allowed after refill")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	l := newLimiter(1000)

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			l.Allow()
		})
	}
	wg.Wait()
}

func TestRegistry_PerClientBuckets(t *testing.T) {
	t.Parallel()
	r := NewRegistry(1)

	if res := r.Allow("token-a"); !res.Allowed {
		t.Fatal("first request for token-a should be allowed")
	}
	if res := r.Allow("token-a"); res.Allowed {
		t.Error("second request for token-a should be denied")
	}

	// A different client has its own bucket.
	if res := r.Allow("token-b"); !res.Allowed {
		t.Error("first request for token-b should be allowed")
	}
}

func TestRegistry_SameKeySameLimiter(t *testing.T) {
	t.Parallel()
	r := NewRegistry(10)

	l1 := r.getOrCreate("key1")
	l2 := r.getOrCreate("key1")
	if l1 != l2 {
		t.Error("same key should return same limiter")
	}
}

func TestRegistry_EvictStale(t *testing.T) {
	t.Parallel()
	r := NewRegistry(10)

	r.getOrCreate("fresh")
	r.getOrCreate("stale")

	// Manually make "stale" entry old.
	r.mu.Lock()
	r.limiters["stale"].mu.Lock()
	r.limiters["stale"].lastUsed = time.Now().Add(-2 * time.Hour)
	r.limiters["stale"].mu.Unlock()
	r.mu.Unlock()

	evicted := r.EvictStale(time.Now().Add(-1 * time.Hour))
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}

	r.mu.RLock()
	_, hasFresh := r.limiters["fresh"]
	_, hasStale := r.limiters["stale"]
	r.mu.RUnlock()

	if !hasFresh {
		t.Error("fresh limiter should not be evicted")
	}
	if hasStale {
		t.Error("stale limiter should be evicted")
	}
}

func TestBucket_RefillNegativeElapsed(t *testing.T) {
	t.Parallel()
	l := newLimiter(10)
	l.mu.Lock()
	l.bucket.tokens = 5
	l.bucket.lastFill = time.Now().Add(time.Hour) // future
	l.mu.Unlock()

	if r := l.Allow(); !r.Allowed {
		t.Error("should be allowed (refill skipped for negative elapsed)")
	}
}

func TestBucket_RetryAfterPositive(t *testing.T) {
	t.Parallel()
	l := newLimiter(60) // 1 token/sec
	for range 60 {
		l.Allow()
	}
	r := l.Allow()
	if r.Allowed {
		t.Fatal("should be denied")
	}
	if r.RetryAfterSeconds <= 0 {
		t.Error("retry after should be positive")
	}
}

func BenchmarkRegistryAllow(b *testing.B) {
	r := NewRegistry(1_000_000) // high limit so it never denies
	for b.Loop() {
		r.Allow("bench-token")
	}
}
