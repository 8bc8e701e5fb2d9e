package queue

import "time"

// Queue is the configuration entity for a named queue.
type Queue struct {
	Name               string        `bun:"name,pk"`
	MaxConcurrency     int           `bun:"max_concurrency,notnull,default:1"`
	VisibilityTimeout  time.Duration `bun:"visibility_timeout,notnull"`
	DlqName            string        `bun:"dlq_name,nullzero"`
	Paused             bool          `bun:"paused,notnull,default:false"`
	RateLimitTier      string        `bun:"rate_limit_tier,nullzero"`
	EncryptionRequired bool          `bun:"encryption_required,notnull,default:false"`
}

// DefaultQueue returns a Queue configuration with the spec's defaults:
// concurrency 1, no DLQ, not paused, encryption not required.
func DefaultQueue(name string, visibility time.Duration) *Queue {
	return &Queue{
		Name:              name,
		MaxConcurrency:    1,
		VisibilityTimeout: visibility,
	}
}

// Stats is a point-in-time snapshot of a queue's counters.
type Stats struct {
	Name      string
	Pending   int64
	Leased    int64
	Succeeded int64
	Dead      int64
	InFlight  int64
}
