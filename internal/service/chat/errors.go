package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed caller input: an unknown language
	// selection or empty user text. History is never touched when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrSessionNotFound      = errors.New("session not found")
	ErrInferenceUnavailable = errors.New("inference backend unavailable")
)

// InferenceError wraps any failure reported by the inference backend
// (network, auth, quota, malformed response). It is never retried here.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
