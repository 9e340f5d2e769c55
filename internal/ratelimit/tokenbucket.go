// Package ratelimit implements a small token-bucket limiter, used both for
// the web-search tool's outbound self-throttling and the orchestrator's
// per-client request limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a simple token bucket: Capacity tokens, refilled one at a time
// every RefillRate.
type Bucket struct {
	capacity   int
	tokens     int
	refillAt   time.Time
	refillRate time.Duration
	mu         sync.Mutex
}

// NewBucket creates a full bucket with the given capacity and refill rate.
func NewBucket(capacity int, refillRate time.Duration) *Bucket {
	return &Bucket{
		capacity:   capacity,
		tokens:     capacity,
		refillAt:   time.Now(),
		refillRate: refillRate,
	}
}

// TakeToken attempts to take one token immediately, returning false if none
// are available.
func (b *Bucket) TakeToken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.After(b.refillAt) {
		elapsed := now.Sub(b.refillAt)
		toAdd := int(elapsed / b.refillRate)
		if toAdd > 0 {
			if b.tokens+toAdd > b.capacity {
				b.tokens = b.capacity
			} else {
				b.tokens += toAdd
			}
			b.refillAt = b.refillAt.Add(time.Duration(toAdd) * b.refillRate)
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until a token becomes available or ctx is canceled.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		if b.TakeToken() {
			return nil
		}
		b.mu.Lock()
		wait := time.Until(b.refillAt)
		b.mu.Unlock()
		if wait <= 0 {
			wait = b.refillRate
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
