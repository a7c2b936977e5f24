package guard

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"ai-scam-shield-demo/backend/pkg/logger"
)

// RouteConfig is the fixed-window rate-limit configuration for one logical
// endpoint. Distinct routes track independent counters even for the same
// client.
type RouteConfig struct {
	// Name identifies the logical endpoint (e.g. "history-get").
	Name string
	// Limit is the maximum number of requests admitted per window.
	Limit int
	// Window is the fixed window duration.
	Window time.Duration
}

// Validate reports a malformed configuration. Callers are expected to run
// this at startup so a bad route config fails loudly, not at request time.
func (c RouteConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("rate limit config: route name is required")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("rate limit config %q: limit must be positive, got %d", c.Name, c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit config %q: window must be positive, got %s", c.Name, c.Window)
	}
	return nil
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
	// RetryAfter is the number of seconds (rounded up) until the window
	// resets. Only meaningful when Allowed is false.
	RetryAfter int
}

// CounterStore tracks fixed-window counters per key. The increment must be
// atomic per key: two concurrent requests must never both observe
// count == limit-1 and both be admitted.
type CounterStore interface {
	// Incr increments the counter for key inside the window that contains
	// now, starting a fresh window if none is active, and returns the new
	// count together with the window start.
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (count int, windowStart time.Time, err error)
}

// Limiter applies fixed-window rate limiting on top of a CounterStore.
//
// Fixed windows admit up to 2x the limit across a window boundary (a full
// window's quota at the end of one window plus another at the start of the
// next). That matches the upstream behaviour; a sliding window would tighten
// it at added complexity.
type Limiter struct {
	store CounterStore
	log   *logger.Logger
	now   func() time.Time
}

// NewLimiter creates a limiter backed by the given store.
func NewLimiter(store CounterStore, log *logger.Logger) *Limiter {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Limiter{
		store: store,
		log:   log.WithComponent("ratelimit"),
		now:   time.Now,
	}
}

// RateLimitKey derives the counter key from a client IP and a logical route
// name. An empty IP falls into a shared anonymous bucket.
func RateLimitKey(ip, route string) string {
	if ip == "" {
		ip = "anonymous"
	}
	return ip + ":" + route
}

// Check runs the fixed-window admission decision for key under cfg.
//
// On a store failure the request is admitted: losing a counter update is
// preferable to turning a storage outage into a full outage.
func (l *Limiter) Check(ctx context.Context, key string, cfg RouteConfig) Decision {
	now := l.now()

	count, windowStart, err := l.store.Incr(ctx, key, cfg.Window, now)
	if err != nil {
		l.log.LogError(err, "counter store failure, admitting request", "key", key, "route", cfg.Name)
		return Decision{Allowed: true, Limit: cfg.Limit, Remaining: cfg.Limit, ResetTime: now.Add(cfg.Window)}
	}

	reset := windowStart.Add(cfg.Window)
	remaining := cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= cfg.Limit,
		Limit:     cfg.Limit,
		Remaining: remaining,
		ResetTime: reset,
	}
	if !d.Allowed {
		d.RetryAfter = int(math.Ceil(reset.Sub(now).Seconds()))
		if d.RetryAfter < 1 {
			d.RetryAfter = 1
		}
	}
	return d
}

// record is the per-key counter state held by the in-memory store.
type record struct {
	windowStart time.Time
	count       int
	window      time.Duration
}

// MemoryStore is the in-process CounterStore. State is per-instance; a
// horizontally scaled deployment should use the Redis store so all
// instances share counters.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record)}
}

// Incr implements CounterStore. Expired windows are reset lazily on access.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.Sub(rec.windowStart) >= window {
		rec = &record{windowStart: now, count: 1, window: window}
		s.records[key] = rec
		return rec.count, rec.windowStart, nil
	}

	rec.count++
	return rec.count, rec.windowStart, nil
}

// Sweep removes records whose window expired before the cutoff. It bounds
// memory growth under distributed or spoofed-IP traffic, where lazy reset
// alone would keep one record per key forever.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if now.Sub(rec.windowStart) >= rec.window {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// StartSweeper runs Sweep on the given interval until the returned stop
// function is called.
func (s *MemoryStore) StartSweeper(interval time.Duration, log *logger.Logger) func() {
	if log == nil {
		log = logger.GetGlobal()
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.Sweep(time.Now()); removed > 0 {
					log.Debug("swept stale rate limit records", "removed", removed)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
