// Package errs implements the error taxonomy shared across queuecore.
//
// Every component surfaces errors as a *Error carrying a stable Kind, a
// human-readable message, optional structured Details, and an optional
// RequestId for correlation. Kinds are matched with errors.Is against the
// package-level sentinel values (ErrNotFound, ErrInvalidState, ...);
// wrapping preserves the chain so callers can still unwrap to a driver
// error when one is present.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for retry and logging decisions. It does not
// name a concrete type, only a category from the spec's error taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindQuotaExceeded
	KindTenantSuspended
	KindRateLimited
	KindCircuitOpen
	KindHandlerTimeout
	KindHandlerError
	KindEncryptionFailed
	KindKeyNotFound
	KindAuthFailed
	KindTransient
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTenantSuspended:
		return "tenant_suspended"
	case KindRateLimited:
		return "rate_limited"
	case KindCircuitOpen:
		return "circuit_open"
	case KindHandlerTimeout:
		return "handler_timeout"
	case KindHandlerError:
		return "handler_error"
	case KindEncryptionFailed:
		return "encryption_failed"
	case KindKeyNotFound:
		return "key_not_found"
	case KindAuthFailed:
		return "auth_failed"
	case KindTransient:
		return "transient"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned at component boundaries.
type Error struct {
	Kind      Kind
	Message   string
	Details   map[string]any
	RequestId string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, errs.New(kind, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches structured context and returns the same Error for
// chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithRequestId attaches a request id and returns the same Error for
// chaining.
func (e *Error) WithRequestId(id string) *Error {
	e.RequestId = id
	return e
}

// Retryable reports whether an error of this kind is, in general, worth
// retrying without caller-specific knowledge. Handler-level retry
// decisions still go through retry.Policy.IsRetryableError.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindCircuitOpen, KindHandlerTimeout, KindHandlerError, KindTransient:
		return true
	default:
		return false
	}
}

// Sentinel instances for errors.Is matching without allocating a message.
var (
	ErrNotFound       = New(KindNotFound, "not found")
	ErrInvalidState   = New(KindInvalidState, "invalid state")
	ErrQuotaExceeded  = New(KindQuotaExceeded, "tenant quota exceeded")
	ErrTenantGated    = New(KindTenantSuspended, "tenant access denied")
	ErrRateLimited    = New(KindRateLimited, "rate limited")
	ErrCircuitOpen    = New(KindCircuitOpen, "circuit open")
	ErrHandlerTimeout = New(KindHandlerTimeout, "handler timeout")
	ErrEncryption     = New(KindEncryptionFailed, "encryption failed")
	ErrKeyNotFound    = New(KindKeyNotFound, "key not found")
	ErrAuthFailed     = New(KindAuthFailed, "authentication failed")
	ErrShutdown       = New(KindShutdown, "core is shutting down")
	ErrQueuePaused    = New(KindInvalidState, "queue is paused")
	ErrQueueNotFound  = New(KindNotFound, "queue not found")
	ErrValidation     = New(KindValidation, "validation failed")
)
