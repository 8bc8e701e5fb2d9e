// Package clock provides the default Clock and IdGen port implementations.
package clock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// System is the default Clock, backed directly by the time package.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UUIDGen is the default IdGen, producing time-ordered (UUIDv7) identifiers
// when the runtime's uuid package supports it, falling back to a random
// UUIDv4 otherwise.
type UUIDGen struct{}

// Next returns a fresh time-ordered unique identifier.
func (UUIDGen) Next() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
