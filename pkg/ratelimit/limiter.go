package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int        // Maximum number of tokens
	tokens     float64    // Current number of tokens
	refillRate float64    // Tokens added per second
	lastRefill time.Time  // Last time tokens were refilled
	mu         sync.Mutex // Mutex for thread safety
}

// NewTokenBucket creates a new token bucket rate limiter.
// capacity: maximum number of attempts allowed in a burst
// refillRate: attempts allowed per second
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request should be allowed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = float64(tb.capacity)
	tb.lastRefill = time.Now()
}

// KeyedLimiter manages one token bucket per key. Used per-IP on the
// login endpoints and per-factor for verification attempts, so repeated
// wrong codes cannot brute-force the 6-digit space.
type KeyedLimiter struct {
	buckets    map[string]*bucketEntry
	capacity   int
	refillRate float64
	ttl        time.Duration
	mu         sync.Mutex
}

type bucketEntry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewKeyedLimiter creates a new per-key rate limiter.
// ttl bounds how long an idle bucket is kept in memory (0 = forever).
func NewKeyedLimiter(capacity int, refillRate float64, ttl time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		buckets:    make(map[string]*bucketEntry),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
	}
}

// Allow checks if a request for the given key should be allowed
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	entry, ok := l.buckets[key]
	if !ok {
		entry = &bucketEntry{bucket: NewTokenBucket(l.capacity, l.refillRate)}
		l.buckets[key] = entry
	}
	entry.lastSeen = time.Now()
	l.evictStaleLocked()
	l.mu.Unlock()

	return entry.bucket.Allow()
}

// Reset clears the bucket for a key, restoring full capacity
func (l *KeyedLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// evictStaleLocked drops buckets idle longer than the TTL. Caller holds mu.
func (l *KeyedLimiter) evictStaleLocked() {
	if l.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-l.ttl)
	for key, entry := range l.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of active buckets
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
