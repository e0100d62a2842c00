package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-symbol token bucket guarding the broker bridge from
// fetch storms when many sessions share one symbol.
type Limiter struct {
	capacity     float64
	refillPerSec float64

	mu sync.Mutex
	m  map[string]*bucket
}

// New creates a limiter allowing capacity burst and refillPerSec sustained
// requests per symbol.
func New(capacity, refillPerSec float64) *Limiter {
	if capacity <= 0 {
		capacity = 5
	}
	if refillPerSec <= 0 {
		refillPerSec = 1
	}
	return &Limiter{capacity: capacity, refillPerSec: refillPerSec, m: make(map[string]*bucket)}
}

// Allow returns true if one token can be consumed for symbol.
func (l *Limiter) Allow(symbol string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[symbol]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[symbol] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens += elapsed * l.refillPerSec
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
