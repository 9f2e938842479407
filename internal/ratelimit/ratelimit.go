// Package ratelimit implements per-client request limiting with lazy-refill
// token buckets. Clients are keyed by the bearer token they present; the
// gate does not verify tokens, so the token value is the only stable
// client identity available.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// Bucket is a token bucket with lazy refill (no background goroutine).
type Bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(limit int64) *Bucket {
	return &Bucket{
		tokens:   float64(limit),
		max:      float64(limit),
		rate:     float64(limit) / 60.0, // per-minute limit -> per-second rate
		lastFill: time.Now(),
	}
}

// refill adds tokens based on elapsed time since last refill.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// tryConsume attempts to consume one token. Returns remaining and whether allowed.
func (b *Bucket) tryConsume(now time.Time) (remaining int64, allowed bool) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), true
	}
	return 0, false
}

// retryAfter returns seconds until one token is available.
func (b *Bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// Limiter holds the request bucket for a single client.
type Limiter struct {
	mu       sync.Mutex
	bucket   *Bucket
	limit    int64
	lastUsed time.Time
}

func newLimiter(rpm int64) *Limiter {
	return &Limiter{
		bucket:   newBucket(rpm),
		limit:    rpm,
		lastUsed: time.Now(),
	}
}

// Allow consumes one request token.
func (l *Limiter) Allow() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.lastUsed = now

	remaining, ok := l.bucket.tryConsume(now)
	if ok {
		return Result{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: remaining,
		}
	}
	return Result{
		Allowed:           false,
		Limit:             l.limit,
		Remaining:         0,
		RetryAfterSeconds: l.bucket.retryAfter(),
	}
}

// maxClients bounds the registry so an attacker rotating tokens cannot grow
// the map without limit. Crossing it triggers a stale sweep.
const maxClients = 16_384

// staleAfter is how long an idle client's limiter is kept.
const staleAfter = 10 * time.Minute

// Registry manages per-client Limiters with a shared RPM limit.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	rpm      int64
}

// NewRegistry creates a rate limiter registry. rpm applies to each client
// independently.
func NewRegistry(rpm int64) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		rpm:      rpm,
	}
}

// Allow consumes one request token for the given client key, creating the
// limiter on first sight.
func (r *Registry) Allow(key string) Result {
	return r.getOrCreate(key).Allow()
}

// getOrCreate returns the limiter for key, creating one if needed.
// Uses double-check locking to minimize write-lock contention.
func (r *Registry) getOrCreate(key string) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if l, ok := r.limiters[key]; ok {
		return l
	}
	if len(r.limiters) >= maxClients {
		r.evictStaleLocked(time.Now().Add(-staleAfter))
	}
	l = newLimiter(r.rpm)
	r.limiters[key] = l
	return l
}

// EvictStale removes limiters not used since cutoff.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictStaleLocked(cutoff)
}

func (r *Registry) evictStaleLocked(cutoff time.Time) int {
	evicted := 0
	for k, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, k)
			evicted++
		}
	}
	return evicted
}
