package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFixedWindow_AcceptsUpToLimit(t *testing.T) {
	cfg := Config{MaxRequests: 3, WindowSeconds: 60}
	lim := New(cfg, NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := lim.Allow(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed at limit %d", i, cfg.MaxRequests)
		}
	}
	res, err := lim.Allow(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatal("4th request should be denied at max_requests=3")
	}
}

func TestSlidingWindow_DeniesAfterLimit(t *testing.T) {
	cfg := Config{MaxRequests: 3, WindowSeconds: 60, SlidingWindow: true}
	lim := New(cfg, NewMemoryStore())
	ctx := context.Background()

	var last Result
	for i := 0; i < 4; i++ {
		res, err := lim.Allow(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last = res
	}
	if last.Allowed {
		t.Fatal("4th request within window should be denied")
	}
	if last.RetryAfter <= 0 {
		t.Errorf("expected a positive retry-after, got %v", last.RetryAfter)
	}
}

func TestTiered_SelectsByName(t *testing.T) {
	free := New(Config{MaxRequests: 1, WindowSeconds: 60}, NewMemoryStore())
	pro := New(Config{MaxRequests: 100, WindowSeconds: 60}, NewMemoryStore())
	tiered := NewTiered(map[string]Limiter{"free": free, "pro": pro})

	if tiered.Tier("free") != free {
		t.Error("expected free tier lookup to return the free limiter")
	}
	if tiered.Tier("missing") != nil {
		t.Error("expected nil for unknown tier")
	}
}

func TestMemoryStore_PruneExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	if _, err := store.AddTimestamp(ctx, "k", now.Add(-2*time.Second), time.Second); err != nil {
		t.Fatal(err)
	}
	ts, err := store.AddTimestamp(ctx, "k", now, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 {
		t.Errorf("expected stale timestamp to be pruned, got %d entries", len(ts))
	}
}
