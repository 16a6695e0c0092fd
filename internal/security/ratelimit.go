package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a client exceeds its quota.
var ErrRateLimited = errors.New("rate limit exceeded")

// Quota kinds.
const (
	KindCall = "call"
	KindRow  = "row"
)

// RateLimitConfig holds per-client quotas for the HTTP gateway. Zero
// disables a quota.
type RateLimitConfig struct {
	CallsPerMin int `yaml:"calls_per_min"`
	RowsPerMin  int `yaml:"rows_per_min"`
}

// RateLimiter is a sliding-window limiter keyed by client and quota kind.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]int
	window  time.Duration
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

type bucketKey struct {
	client string
	kind   string
}

type bucket struct {
	events []event
	total  int
}

type event struct {
	at time.Time
	n  int
}

// NewRateLimiter creates a limiter enforcing cfg over one-minute windows.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	limits := make(map[string]int)
	if cfg.CallsPerMin > 0 {
		limits[KindCall] = cfg.CallsPerMin
	}
	if cfg.RowsPerMin > 0 {
		limits[KindRow] = cfg.RowsPerMin
	}
	return &RateLimiter{
		limits:  limits,
		window:  time.Minute,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Allow is AllowN with n = 1.
func (rl *RateLimiter) Allow(client, kind string) error {
	return rl.AllowN(client, kind, 1)
}

// AllowN records n units of kind for client, or returns ErrRateLimited
// without recording anything when they would exceed the quota. Kinds
// without a quota are always allowed.
func (rl *RateLimiter) AllowN(client, kind string, n int) error {
	limit, ok := rl.limits[kind]
	if !ok || n <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := bucketKey{client, kind}
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{}
		rl.buckets[key] = b
	}

	now := rl.now()
	b.evict(now.Add(-rl.window))
	if b.total+n > limit {
		return ErrRateLimited
	}
	b.events = append(b.events, event{at: now, n: n})
	b.total += n
	return nil
}

// evict drops events at or before cutoff. Events are in time order.
func (b *bucket) evict(cutoff time.Time) {
	i := 0
	for i < len(b.events) && !b.events[i].at.After(cutoff) {
		b.total -= b.events[i].n
		i++
	}
	b.events = b.events[i:]
}
