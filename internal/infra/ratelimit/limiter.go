// Package ratelimit provides per-service token-bucket admission
// control. Each external collaborator gets its own bucket; waiting on
// one service never blocks callers of another.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config defines the bucket for one service.
type Config struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"` // 0 = 2x rate, min 1
}

// Stats holds per-service limiter statistics.
type Stats struct {
	TotalAcquired int64
	TotalWait     time.Duration
	Tokens        float64
	Capacity      float64
}

// Limiter manages token buckets for multiple services. Unknown
// services are admitted without limit.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time

	acquired int64
	waited   time.Duration
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Configure sets the bucket for a service. The bucket starts full.
func (l *Limiter) Configure(service string, cfg Config) {
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.RatePerSecond*2))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[service] = &bucket{
		tokens:   float64(burst),
		capacity: float64(burst),
		rate:     cfg.RatePerSecond,
		last:     time.Now(),
	}
	slog.Debug("Configured rate limit", "service", service, "rate", cfg.RatePerSecond, "burst", burst)
}

// Acquire blocks until cost tokens are available for service, then
// debits them. It never returns an error of its own; only context
// cancellation interrupts the wait.
func (l *Limiter) Acquire(ctx context.Context, service string, cost int) error {
	l.mu.RLock()
	b, ok := l.buckets[service]
	l.mu.RUnlock()
	if !ok {
		// No limit configured for this service.
		return nil
	}
	if float64(cost) > b.capacity {
		return fmt.Errorf("cost %d exceeds burst capacity %.0f for %s", cost, b.capacity, service)
	}

	start := time.Now()
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= float64(cost) {
			b.tokens -= float64(cost)
			b.acquired += int64(cost)
			b.waited += time.Since(start)
			b.mu.Unlock()
			return nil
		}
		// Wait only as long as the refill needs; re-check afterwards
		// since a concurrent caller may have drained the bucket.
		needed := float64(cost) - b.tokens
		wait := time.Duration(needed / b.rate * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stats returns a snapshot of every configured bucket.
func (l *Limiter) Stats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Stats, len(l.buckets))
	for name, b := range l.buckets {
		b.mu.Lock()
		b.refill()
		out[name] = Stats{
			TotalAcquired: b.acquired,
			TotalWait:     b.waited,
			Tokens:        b.tokens,
			Capacity:      b.capacity,
		}
		b.mu.Unlock()
	}
	return out
}

// refill adds tokens for wall time elapsed since the last update,
// clamped to capacity. Caller must hold b.mu.
func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
	b.last = now
}
