package llm

import (
	"context"
	"errors"
)

// Error types for classifying LLM errors. Nothing in this package retries;
// the classification drives circuit breaking, logs and metrics.

// ErrEmptyResponse is returned by providers that got a response with no text.
var ErrEmptyResponse = errors.New("empty response")

// TransientError represents a temporary failure (network, 429, 5xx) that a
// later, user-initiated request may not hit.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error such as bad credentials or a
// rejected request.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Classify returns "ok", "transient", "fatal" or "canceled" for metrics labels.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case IsFatal(err):
		return "fatal"
	default:
		return "transient"
	}
}

// countsAgainstEndpoint reports whether err says something about endpoint
// health. Fatal errors point at configuration, cancellations at the caller
// and empty responses at the prompt.
func countsAgainstEndpoint(err error) bool {
	if err == nil || IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	return true
}
