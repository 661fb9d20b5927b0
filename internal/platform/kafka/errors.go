package kafka

import (
	"errors"
	"fmt"
)

// FailureKind is the only signal the consumer runtime reads from a handler
// failure. The runtime never inspects error text.
type FailureKind int

const (
	// KindRetryable marks transient failures: retried with backoff, then DLQ.
	KindRetryable FailureKind = iota
	// KindPermanent marks structural failures: routed to DLQ immediately.
	KindPermanent
)

func (k FailureKind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "retryable"
}

// HandlerError is the classified failure a handler returns to the runtime.
type HandlerError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Retryable wraps a transient failure.
func Retryable(message string, err error) *HandlerError {
	return &HandlerError{Kind: KindRetryable, Message: message, Err: err}
}

// Permanent wraps a structural failure that must not be retried.
func Permanent(message string, err error) *HandlerError {
	return &HandlerError{Kind: KindPermanent, Message: message, Err: err}
}

// Retryablef is Retryable with a formatted message and no cause.
func Retryablef(format string, args ...any) *HandlerError {
	return &HandlerError{Kind: KindRetryable, Message: fmt.Sprintf(format, args...)}
}

// Permanentf is Permanent with a formatted message and no cause.
func Permanentf(format string, args ...any) *HandlerError {
	return &HandlerError{Kind: KindPermanent, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies an arbitrary handler error. Unclassified errors are
// treated as retryable so nothing is dropped on an unexpected failure.
func KindOf(err error) FailureKind {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindRetryable
}
