package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is implemented by TokenBucket.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	GetRemaining() int
}

var _ RateLimiter = (*TokenBucket)(nil)

// TokenBucket is a classic token bucket. The zero value is not usable.
type TokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex

	now func() time.Time
}

// NewTokenBucket returns a full bucket.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// PerMinute allows n requests per minute, refilled continuously.
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(n, float64(n)/60)
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Allow takes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		tb.mu.Lock()
		waitTime := time.Second
		if tb.refillRate > 0 {
			waitTime = time.Duration((1 - tb.tokens) / tb.refillRate * float64(time.Second))
		}
		tb.mu.Unlock()
		if waitTime <= 0 {
			waitTime = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining reports whole tokens left.
func (tb *TokenBucket) GetRemaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

// Keyed keeps one bucket per key, such as a client IP.
type Keyed struct {
	mu       sync.Mutex
	buckets  map[string]*keyedEntry
	factory  func() *TokenBucket
	idleTTL  time.Duration
	lastScan time.Time
}

type keyedEntry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewKeyed builds buckets with factory; keys idle for longer than idleTTL are dropped.
func NewKeyed(factory func() *TokenBucket, idleTTL time.Duration) *Keyed {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Keyed{
		buckets:  make(map[string]*keyedEntry),
		factory:  factory,
		idleTTL:  idleTTL,
		lastScan: time.Now(),
	}
}

// Allow takes one token from key's bucket.
func (k *Keyed) Allow(key string) bool {
	now := time.Now()

	k.mu.Lock()
	e, ok := k.buckets[key]
	if !ok {
		e = &keyedEntry{bucket: k.factory()}
		k.buckets[key] = e
	}
	e.lastSeen = now
	if now.Sub(k.lastScan) > k.idleTTL {
		for key, entry := range k.buckets {
			if now.Sub(entry.lastSeen) > k.idleTTL {
				delete(k.buckets, key)
			}
		}
		k.lastScan = now
	}
	k.mu.Unlock()

	return e.bucket.Allow()
}

// Len is the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
