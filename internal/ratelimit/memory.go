package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastAccess time.Time
}

// MemoryLimiter is an in-process token bucket per key. Buckets idle for
// longer than staleAfter are evicted by a background sweep.
type MemoryLimiter struct {
	rate  float64 // tokens per second
	burst float64
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

const (
	staleAfter    = 10 * time.Minute
	sweepInterval = time.Minute
)

// NewMemoryLimiter creates a limiter refilling rate tokens per second up to
// burst. Call Close to stop the eviction sweep.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := newMemoryLimiter(rate, burst, time.Now)
	go m.sweep()
	return m
}

func newMemoryLimiter(rate float64, burst int, now func() time.Time) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		now:     now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
}

// Allow takes one token from key's bucket.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		m.buckets[key] = &bucket{tokens: m.burst - 1, lastAccess: now}
		return Decision{Allowed: true}, nil
	}

	b.tokens = math.Min(m.burst, b.tokens+now.Sub(b.lastAccess).Seconds()*m.rate)
	b.lastAccess = now

	if b.tokens < 1 {
		return Decision{RetryAfter: m.wait(1 - b.tokens)}, nil
	}
	b.tokens--
	return Decision{Allowed: true}, nil
}

// wait converts a token deficit into time.
func (m *MemoryLimiter) wait(deficit float64) time.Duration {
	if m.rate <= 0 {
		return staleAfter
	}
	return time.Duration(math.Ceil(deficit / m.rate * float64(time.Second)))
}

// Close stops the eviction sweep. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *MemoryLimiter) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-staleAfter)
	for key, b := range m.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

func (m *MemoryLimiter) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
