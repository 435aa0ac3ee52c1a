package citydata

import (
	"errors"
	"fmt"
)

// ErrNotFound is the business outcome for a request number that does not
// exist in the dataset. It is not a system error.
var ErrNotFound = errors.New("service request not found")

// LookupError represents a Data Service failure (network, timeout, 5xx).
type LookupError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("city data error during %s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("city data error during %s: %s", e.Operation, e.Message)
}

func (e *LookupError) Unwrap() error {
	return e.Cause
}

// NewLookupError creates an error for a failed Data Service call.
func NewLookupError(operation, message string, cause error) *LookupError {
	return &LookupError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
