package sessions

import (
	"errors"
	"fmt"
)

// Store error types
const (
	StoreErrorTypeUnavailable = "unavailable"
	StoreErrorTypeQueryFailed = "query_failed"
)

// StoreError represents a session storage failure. It is a distinct error
// kind so callers can tell "backing store down" apart from "no session".
type StoreError struct {
	Type      string
	Operation string
	UserID    string
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session store error [%s] during %s for user %s: %v", e.Type, e.Operation, e.UserID, e.Cause)
	}
	return fmt.Sprintf("session store error [%s] during %s for user %s", e.Type, e.Operation, e.UserID)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreUnavailableError creates an error for a backing store that cannot
// be reached.
func NewStoreUnavailableError(operation, userID string, cause error) *StoreError {
	return &StoreError{
		Type:      StoreErrorTypeUnavailable,
		Operation: operation,
		UserID:    userID,
		Cause:     cause,
	}
}

// NewStoreQueryError creates an error for a failed store operation.
func NewStoreQueryError(operation, userID string, cause error) *StoreError {
	return &StoreError{
		Type:      StoreErrorTypeQueryFailed,
		Operation: operation,
		UserID:    userID,
		Cause:     cause,
	}
}

// IsStoreError reports whether err is (or wraps) a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
