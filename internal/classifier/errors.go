package classifier

import (
	"errors"
	"fmt"
)

// Classifier error types
const (
	ErrorTypeUnavailable     = "unavailable"
	ErrorTypeInvalidResponse = "invalid_response"
)

// ClassifierError represents a failed classification call. Low confidence is
// not an error; it is routed by the state machine.
type ClassifierError struct {
	Type     string
	Provider string
	Message  string
	Cause    error
}

func (e *ClassifierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("classifier error [%s] from %s: %s: %v", e.Type, e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("classifier error [%s] from %s: %s", e.Type, e.Provider, e.Message)
}

func (e *ClassifierError) Unwrap() error {
	return e.Cause
}

// NewUnavailableError creates an error for an unreachable classifier service.
func NewUnavailableError(provider, message string, cause error) *ClassifierError {
	return &ClassifierError{
		Type:     ErrorTypeUnavailable,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// NewInvalidResponseError creates an error for a response the adapter could
// not interpret.
func NewInvalidResponseError(provider, message string, cause error) *ClassifierError {
	return &ClassifierError{
		Type:     ErrorTypeInvalidResponse,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// IsClassifierError reports whether err is (or wraps) a ClassifierError.
func IsClassifierError(err error) bool {
	var ce *ClassifierError
	return errors.As(err, &ce)
}
