// Package ratelimit implements fixed- and sliding-window rate limiting
// against a pluggable Store, plus a tiered limiter selecting among named
// configurations.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config parameterizes a single limiter.
type Config struct {
	MaxRequests    int64
	WindowSeconds  int64
	BurstSize      int64
	SlidingWindow  bool
	KeyPrefix      string
}

// Limit returns the effective request budget: MaxRequests + BurstSize.
func (c Config) Limit() int64 { return c.MaxRequests + c.BurstSize }

func (c Config) window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Result is the outcome of a rate-limit decision, shaped directly after
// the header set the spec requires: X-RateLimit-Limit, -Remaining,
// -Reset, and Retry-After on denial.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Headers renders Result as the conventional HTTP header map. Callers
// that aren't HTTP-facing can ignore this and use the fields directly.
func (r Result) Headers() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     fmt.Sprintf("%d", r.Limit),
		"X-RateLimit-Remaining": fmt.Sprintf("%d", r.Remaining),
		"X-RateLimit-Reset":     fmt.Sprintf("%d", r.ResetAt.Unix()),
	}
	if !r.Allowed {
		h["Retry-After"] = fmt.Sprintf("%d", int64(r.RetryAfter.Seconds()))
	}
	return h
}

// Limiter is satisfied by the fixed-window and sliding-window limiters
// this package constructs. Tiered groups named limiters and is not itself
// a Limiter.
type Limiter interface {
	// Allow records an attempt for id and reports whether it is permitted.
	Allow(ctx context.Context, id string) (Result, error)
	// Peek reports the current state for id without recording an attempt.
	Peek(ctx context.Context, id string) (Result, error)
}

func key(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + ":" + id
}
