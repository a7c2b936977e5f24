package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLimiter(store CounterStore) *Limiter {
	return NewLimiter(store, nil)
}

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	limiter := testLimiter(NewMemoryStore())
	cfg := RouteConfig{Name: "analyze", Limit: 5, Window: time.Minute}
	key := RateLimitKey("10.0.0.1", cfg.Name)

	for i := 1; i <= 5; i++ {
		d := limiter.Check(context.Background(), key, cfg)
		assert.True(t, d.Allowed, "request %d should be admitted", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d := limiter.Check(context.Background(), key, cfg)
	assert.False(t, d.Allowed, "request past the limit must be rejected")
	assert.Equal(t, 0, d.Remaining)
	assert.GreaterOrEqual(t, d.RetryAfter, 1)
	assert.LessOrEqual(t, d.RetryAfter, 60)
}

func TestLimiterWindowReset(t *testing.T) {
	store := NewMemoryStore()
	limiter := testLimiter(store)
	cfg := RouteConfig{Name: "upload", Limit: 2, Window: time.Minute}
	key := RateLimitKey("10.0.0.2", cfg.Name)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Check(context.Background(), key, cfg).Allowed)
	assert.True(t, limiter.Check(context.Background(), key, cfg).Allowed)
	assert.False(t, limiter.Check(context.Background(), key, cfg).Allowed)

	// Advance past the window: the counter starts fresh.
	now = now.Add(time.Minute + time.Second)
	d := limiter.Check(context.Background(), key, cfg)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestLimiterRetryAfterTracksReset(t *testing.T) {
	store := NewMemoryStore()
	limiter := testLimiter(store)
	cfg := RouteConfig{Name: "analyze", Limit: 1, Window: time.Minute}
	key := RateLimitKey("10.0.0.3", cfg.Name)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Check(context.Background(), key, cfg).Allowed)

	// 45s into the window: 15s remain.
	now = now.Add(45 * time.Second)
	d := limiter.Check(context.Background(), key, cfg)
	assert.False(t, d.Allowed)
	assert.Equal(t, 15, d.RetryAfter)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := testLimiter(NewMemoryStore())
	cfg := RouteConfig{Name: "feedback", Limit: 1, Window: time.Minute}

	first := RateLimitKey("192.168.1.1", cfg.Name)
	second := RateLimitKey("192.168.1.2", cfg.Name)

	assert.True(t, limiter.Check(context.Background(), first, cfg).Allowed)
	assert.False(t, limiter.Check(context.Background(), first, cfg).Allowed)

	// A different client is unaffected by the first one's exhaustion.
	assert.True(t, limiter.Check(context.Background(), second, cfg).Allowed)
}

func TestLimiterRoutesAreIndependent(t *testing.T) {
	limiter := testLimiter(NewMemoryStore())
	analyze := RouteConfig{Name: "analyze", Limit: 1, Window: time.Minute}
	history := RouteConfig{Name: "history-get", Limit: 1, Window: time.Minute}

	ip := "10.1.1.1"
	assert.True(t, limiter.Check(context.Background(), RateLimitKey(ip, analyze.Name), analyze).Allowed)
	assert.False(t, limiter.Check(context.Background(), RateLimitKey(ip, analyze.Name), analyze).Allowed)

	// Same client, different route: separate counter.
	assert.True(t, limiter.Check(context.Background(), RateLimitKey(ip, history.Name), history).Allowed)
}

func TestRateLimitKeyAnonymousFallback(t *testing.T) {
	assert.Equal(t, "anonymous:analyze", RateLimitKey("", "analyze"))
	assert.Equal(t, "10.0.0.1:analyze", RateLimitKey("10.0.0.1", "analyze"))
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration, time.Time) (int, time.Time, error) {
	return 0, time.Time{}, assert.AnError
}

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	limiter := testLimiter(failingStore{})
	cfg := RouteConfig{Name: "analyze", Limit: 1, Window: time.Minute}

	d := limiter.Check(context.Background(), "10.0.0.4:analyze", cfg)
	assert.True(t, d.Allowed, "a store outage must not become a request outage")
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _, err := store.Incr(context.Background(), "a:analyze", time.Minute, now)
	assert.NoError(t, err)
	_, _, err = store.Incr(context.Background(), "b:analyze", time.Minute, now.Add(30*time.Second))
	assert.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	// Only the first key's window has expired.
	removed := store.Sweep(now.Add(70 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestRouteConfigValidate(t *testing.T) {
	assert.NoError(t, RouteConfig{Name: "analyze", Limit: 20, Window: time.Minute}.Validate())
	assert.Error(t, RouteConfig{Limit: 20, Window: time.Minute}.Validate())
	assert.Error(t, RouteConfig{Name: "analyze", Limit: 0, Window: time.Minute}.Validate())
	assert.Error(t, RouteConfig{Name: "analyze", Limit: 20}.Validate())
}
