package retry

import "time"

// DefaultRetryableCodes are the HTTP-style error codes commonly treated
// as retryable. A Policy limits retries to them only when they are passed
// as its RetryableErrors; with an empty list every code not excluded is
// retried.
var DefaultRetryableCodes = []string{"408", "429", "500", "502", "503", "504"}

// Policy orchestrates whether and when to retry a failed attempt.
type Policy struct {
	MaxAttempts        uint32
	Strategy           Strategy
	RetryableErrors    []string
	NonRetryableErrors []string
}

// New builds a Policy. If retryable is empty, IsRetryableError retries
// every code not explicitly excluded by nonRetryable; pass
// DefaultRetryableCodes explicitly to restrict retries to that allowlist.
func New(maxAttempts uint32, strategy Strategy, retryable, nonRetryable []string) *Policy {
	return &Policy{
		MaxAttempts:        maxAttempts,
		Strategy:           strategy,
		RetryableErrors:    retryable,
		NonRetryableErrors: nonRetryable,
	}
}

// ShouldRetry reports whether attempt still has budget remaining.
func (p *Policy) ShouldRetry(attempt uint32) bool {
	return attempt < p.MaxAttempts
}

// IsRetryableError reports whether code should be retried: it is never
// retried if listed in NonRetryableErrors; otherwise, if RetryableErrors
// is empty every other code is retryable, and if non-empty only a listed
// code is retryable.
func (p *Policy) IsRetryableError(code string) bool {
	for _, c := range p.NonRetryableErrors {
		if c == code {
			return false
		}
	}
	if len(p.RetryableErrors) == 0 {
		return true
	}
	for _, c := range p.RetryableErrors {
		if c == code {
			return true
		}
	}
	return false
}

// NextDelay computes the delay before the given 0-indexed attempt.
func (p *Policy) NextDelay(attempt uint32) time.Duration {
	return p.Strategy.Delay(attempt)
}
