package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a provider failure worth retrying within a run
// (timeouts, rate limits, upstream 5xx). Everything else is terminal for the
// stage.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried by the orchestrator's
// bounded retry policy.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func classifyStatus(status int) bool {
	return status == 429 || status >= 500
}
