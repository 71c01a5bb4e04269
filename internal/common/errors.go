// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrConcurrencyConflict indicates a read-modify-write race on a learned
	// pattern. Callers must re-read and retry; the store never resolves the
	// conflict by overwriting.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")

	// ErrInvalidInput indicates malformed caller input (non-finite amounts,
	// zero dates). It is never silently coerced.
	ErrInvalidInput = errors.New("invalid input")

	// Inference errors.
	ErrNoTransactions  = errors.New("no transactions in window")
	ErrNoSuchPattern   = errors.New("pattern not found")
	ErrCyclicHierarchy = errors.New("vendor hierarchy would contain a cycle")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
