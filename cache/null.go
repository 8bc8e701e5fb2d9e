package cache

import (
	"context"
	"time"
)

// Null observes no state: every read misses, every write is discarded.
// Used for tests and to disable caching via configuration without
// threading a nil *Cache through the codebase.
type Null struct{}

func (Null) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Null) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Null) Delete(context.Context, string) (bool, error) { return false, nil }
func (Null) Exists(context.Context, string) (bool, error) { return false, nil }
func (Null) DeletePattern(context.Context, string) (int64, error) { return 0, nil }
func (Null) TTL(context.Context, string) (time.Duration, bool, error) { return 0, false, nil }
func (Null) Increment(_ context.Context, _ string, delta int64) (int64, error) { return delta, nil }
func (Null) Decrement(_ context.Context, _ string, delta int64) (int64, error) { return -delta, nil }
func (Null) GetMany(context.Context, []string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}
func (Null) SetMany(context.Context, map[string][]byte, time.Duration) error { return nil }
func (Null) Clear(context.Context) error                                    { return nil }
func (Null) ListKeys(context.Context, string) ([]string, error)             { return nil, nil }
func (Null) HealthCheck(context.Context) error                              { return nil }
