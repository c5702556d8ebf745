package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucket_Allow(t *testing.T) {
	tb := NewTokenBucket(5, 1.0)

	// Burst capacity allows 5 immediately
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	if tb.Allow() {
		t.Error("6th request should be denied")
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	tb := NewTokenBucket(2, 10.0)

	tb.Allow()
	tb.Allow()
	if tb.Allow() {
		t.Error("bucket should be empty")
	}

	// 10 tokens/sec refills within 200ms
	time.Sleep(200 * time.Millisecond)
	if !tb.Allow() {
		t.Error("request after refill should be allowed")
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	tb := NewTokenBucket(3, 0.001)

	for i := 0; i < 3; i++ {
		tb.Allow()
	}
	if tb.Allow() {
		t.Error("bucket should be empty")
	}

	tb.Reset()
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Errorf("request %d should be allowed after reset", i+1)
		}
	}
}

func TestKeyedLimiter_IsolatesKeys(t *testing.T) {
	l := NewKeyedLimiter(2, 0.001, 0)

	if !l.Allow("a") || !l.Allow("a") {
		t.Error("key a should have burst capacity")
	}
	if l.Allow("a") {
		t.Error("key a should be exhausted")
	}
	if !l.Allow("b") {
		t.Error("key b should be unaffected by key a")
	}
}

func TestKeyedLimiter_Reset(t *testing.T) {
	l := NewKeyedLimiter(1, 0.001, 0)

	l.Allow("a")
	if l.Allow("a") {
		t.Error("key a should be exhausted")
	}

	l.Reset("a")
	if !l.Allow("a") {
		t.Error("key a should be allowed after reset")
	}
}

func TestKeyedLimiter_EvictsStaleBuckets(t *testing.T) {
	l := NewKeyedLimiter(1, 0.001, 50*time.Millisecond)

	l.Allow("a")
	time.Sleep(100 * time.Millisecond)
	l.Allow("b")

	if l.Len() != 1 {
		t.Errorf("stale bucket should be evicted, have %d", l.Len())
	}
}
