package ratelimit

import (
	"sync"
	"time"
)

// KeyedLimiter hands out one Bucket per key (e.g. client address), so each
// caller gets its own independent quota rather than sharing a single global
// bucket — the orchestrator's per-client request limiting needs this, while
// the web-search tool's single outbound bucket does not.
type KeyedLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*Bucket
	capacity   int
	refillRate time.Duration
}

// NewKeyedLimiter builds a limiter that lazily creates a full bucket of the
// given capacity/refill rate the first time a key is seen.
func NewKeyedLimiter(capacity int, refillRate time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		buckets:    make(map[string]*Bucket),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

// Allow reports whether the caller identified by key may proceed now,
// consuming a token from its bucket if so.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.bucketFor(key).TakeToken()
}

func (l *KeyedLimiter) bucketFor(key string) *Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = NewBucket(l.capacity, l.refillRate)
		l.buckets[key] = b
	}
	return b
}
