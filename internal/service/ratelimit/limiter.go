package ratelimit

import (
	"context"
	"sync"
	"time"

	"MacroPulse/pkg/clock"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a per-key token bucket. Burst size equals the configured
// rate: a key configured at N requests/minute may burst N immediately,
// then sustains N/60 per second.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*bucket
	clock clock.Clock
}

type Option func(*Limiter)

// WithClock injects a clock, used by tests.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{m: make(map[string]*bucket), clock: clock.New()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure sets the per-minute rate for key. Safe to call more than
// once; existing tokens are preserved.
func (l *Limiter) Configure(key string, requestsPerMinute int) {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	capacity := float64(requestsPerMinute)
	l.mu.Lock()
	if b, ok := l.m[key]; ok {
		b.capacity = capacity
		b.refillRate = capacity / 60
	} else {
		l.m[key] = &bucket{
			tokens:     capacity,
			capacity:   capacity,
			refillRate: capacity / 60,
			last:       l.clock.Now(),
		}
	}
	l.mu.Unlock()
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// Wait blocks until a token is available for key or ctx is done. The
// wait time is computed from the token deficit rather than polled.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		ok, delay := l.take(key)
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take consumes a token or returns the delay until the next one.
func (l *Limiter) take(key string) (bool, time.Duration) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		// unconfigured keys default to 60/min
		b = &bucket{tokens: 60, capacity: 60, refillRate: 1, last: now}
		l.m[key] = b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	deficit := 1 - b.tokens
	return false, time.Duration(deficit / b.refillRate * float64(time.Second))
}

// Tokens returns the current token count for key, for observability.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.m[key]; ok {
		return b.tokens
	}
	return 0
}
