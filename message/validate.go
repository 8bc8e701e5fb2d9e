package message

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the struct tags on Message and the queue naming pattern.
// It returns a descriptive error if the message is malformed; callers treat
// this as a Validation-kind error and never retry it.
func (m *Message) Validate() error {
	if err := v().Struct(m); err != nil {
		return fmt.Errorf("message validation failed: %w", err)
	}
	if !QueuePattern.MatchString(m.Queue) {
		return fmt.Errorf("message validation failed: queue name %q does not match %s", m.Queue, QueuePattern.String())
	}
	return nil
}
