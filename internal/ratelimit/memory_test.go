package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(rate float64, burst int) (*MemoryLimiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)}
	return newMemoryLimiter(rate, burst, clk.now), clk
}

func TestBurstThenDeny(t *testing.T) {
	m, _ := newTestLimiter(1, 3)
	ctx := context.Background()

	for i := range 3 {
		d, err := m.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d is within burst", i)
	}
	d, err := m.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestRefill(t *testing.T) {
	m, clk := newTestLimiter(2, 1)
	ctx := context.Background()

	d, _ := m.Allow(ctx, "k")
	require.True(t, d.Allowed)
	d, _ = m.Allow(ctx, "k")
	require.False(t, d.Allowed)
	assert.Equal(t, 500*time.Millisecond, d.RetryAfter)

	clk.advance(500 * time.Millisecond)
	d, _ = m.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestTokensCapAtBurst(t *testing.T) {
	m, clk := newTestLimiter(1000, 3)
	ctx := context.Background()
	_, _ = m.Allow(ctx, "k")

	clk.advance(time.Hour)
	for range 3 {
		d, _ := m.Allow(ctx, "k")
		require.True(t, d.Allowed)
	}
	d, _ := m.Allow(ctx, "k")
	assert.False(t, d.Allowed)
}

func TestIndependentKeys(t *testing.T) {
	m, _ := newTestLimiter(1, 1)
	ctx := context.Background()

	d, _ := m.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = m.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	d, _ = m.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestConcurrentAllowNeverExceedsBurst(t *testing.T) {
	m, _ := newTestLimiter(0, 50)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				d, err := m.Allow(ctx, "shared")
				if err == nil && d.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestEvictStale(t *testing.T) {
	m, clk := newTestLimiter(1, 1)
	ctx := context.Background()
	_, _ = m.Allow(ctx, "old")
	clk.advance(staleAfter + time.Second)
	_, _ = m.Allow(ctx, "fresh")

	m.evictStale()
	assert.Equal(t, 1, m.size())
}

func TestCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestNoopLimiter(t *testing.T) {
	var l NoopLimiter
	for range 100 {
		d, err := l.Allow(context.Background(), "x")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	require.NoError(t, l.Close())
}

func TestMiddleware(t *testing.T) {
	m, _ := newTestLimiter(1, 1)
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	reject := func(w http.ResponseWriter, _ *http.Request, _ Decision) {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	h := Middleware(m, IPKeyFunc, reject, nil)(inner)

	do := func(addr string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/refresh", nil)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusAccepted, do("10.0.0.1:1000").Code)
	rec := do("10.0.0.1:2000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusAccepted, do("10.0.0.2:1000").Code)
}

func TestMiddlewareSkipsEmptyKeyAndNilLimiter(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	reject := func(w http.ResponseWriter, _ *http.Request, _ Decision) {
		w.WriteHeader(http.StatusTooManyRequests)
	}

	m, _ := newTestLimiter(0, 1)
	h := Middleware(m, func(*http.Request) string { return "" }, reject, nil)(inner)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	h = Middleware(nil, IPKeyFunc, reject, nil)(inner)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
