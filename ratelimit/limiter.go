package ratelimit

import (
	"context"
	"time"
)

// New constructs the appropriate Limiter for cfg.SlidingWindow.
func New(cfg Config, store Store) Limiter {
	if cfg.SlidingWindow {
		return &slidingWindowLimiter{cfg: cfg, store: store}
	}
	return &fixedWindowLimiter{cfg: cfg, store: store}
}

type fixedWindowLimiter struct {
	cfg   Config
	store Store
}

func (f *fixedWindowLimiter) Allow(ctx context.Context, id string) (Result, error) {
	k := key(f.cfg.KeyPrefix, id)
	count, resetAt, err := f.store.Increment(ctx, k, f.cfg.window())
	if err != nil {
		return Result{}, err
	}
	limit := f.cfg.Limit()
	if count > limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: time.Until(resetAt),
		}, nil
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

func (f *fixedWindowLimiter) Peek(ctx context.Context, id string) (Result, error) {
	k := key(f.cfg.KeyPrefix, id)
	count, resetAt, found, err := f.store.PeekFixed(ctx, k)
	if err != nil {
		return Result{}, err
	}
	limit := f.cfg.Limit()
	if !found {
		return Result{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

type slidingWindowLimiter struct {
	cfg   Config
	store Store
}

func (s *slidingWindowLimiter) Allow(ctx context.Context, id string) (Result, error) {
	k := key(s.cfg.KeyPrefix, id)
	now := time.Now()
	window := s.cfg.window()
	ts, err := s.store.AddTimestamp(ctx, k, now, window)
	if err != nil {
		return Result{}, err
	}
	limit := s.cfg.Limit()
	if int64(len(ts)) > limit {
		oldest := ts[0]
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    oldest.Add(window),
			RetryAfter: oldest.Add(window).Sub(now),
		}, nil
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int64(len(ts)),
		ResetAt:   now.Add(window),
	}, nil
}

func (s *slidingWindowLimiter) Peek(ctx context.Context, id string) (Result, error) {
	k := key(s.cfg.KeyPrefix, id)
	now := time.Now()
	window := s.cfg.window()
	ts, err := s.store.PeekSliding(ctx, k, now, window)
	if err != nil {
		return Result{}, err
	}
	limit := s.cfg.Limit()
	remaining := limit - int64(len(ts))
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   int64(len(ts)) <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}

// Tiered selects among independently configured named limiters, e.g.
// "free", "pro", "enterprise".
type Tiered struct {
	tiers map[string]Limiter
}

// NewTiered builds a Tiered limiter from a name -> Limiter map.
func NewTiered(tiers map[string]Limiter) *Tiered {
	return &Tiered{tiers: tiers}
}

// Tier returns the named limiter, or nil if undefined.
func (t *Tiered) Tier(name string) Limiter {
	return t.tiers[name]
}
