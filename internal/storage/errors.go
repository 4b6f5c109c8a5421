package storage

import "fmt"

// ErrorType distinguishes between retryable and non-retryable errors.
type ErrorType int

const (
	// ErrorTypeInfrastructure indicates DB/system errors (503 - retryable).
	ErrorTypeInfrastructure ErrorType = iota
	// ErrorTypeInvalidData indicates bad input data inside a payload.
	ErrorTypeInvalidData
)

// StorageError wraps storage layer errors with type information.
type StorageError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewInfrastructureError creates an infrastructure error (503 - retryable).
func NewInfrastructureError(message string, cause error) *StorageError {
	return &StorageError{
		Type:    ErrorTypeInfrastructure,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidDataError creates an invalid-data error. Inside an ingestion
// transaction this still aborts the whole request; the type only affects the
// HTTP status the caller maps it to.
func NewInvalidDataError(message string, cause error) *StorageError {
	return &StorageError{
		Type:    ErrorTypeInvalidData,
		Message: message,
		Cause:   cause,
	}
}
