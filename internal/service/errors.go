package service

import (
	"errors"
	"fmt"
)

// Common service errors. The API layer maps them to HTTP status codes.
var (
	// ErrShuttingDown is returned when a run is requested after Shutdown.
	ErrShuttingDown = errors.New("service is shutting down")

	// ErrHistoryDisabled is returned by History when no run store is configured.
	ErrHistoryDisabled = errors.New("run history is not enabled")

	// ErrUnauthenticated is returned when an operation receives an empty principal.
	ErrUnauthenticated = errors.New("caller is not authenticated")
)

// ServiceError wraps unexpected failures with the operation that produced them.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "create_service", "history")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}
