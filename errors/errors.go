package errors

import (
	"fmt"
	"time"
)

// AppError is the unified error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Fatal reports whether the error tears down a running pipeline.
func (e *AppError) Fatal() bool { return IsFatalCode(e.Code) }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// --- Common Error Constructors ---

// Configuration creates an error for an invalid configuration value.
// An empty field means the configuration as a whole is invalid.
func Configuration(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeConfiguration, Message: fmt.Sprintf("Invalid configuration: %s", reason),
		Details: details,
	}
}

// Dispatch creates an error for a callable that failed inside a worker.
func Dispatch(stage, worker string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDispatch, Message: fmt.Sprintf("The %s callable failed in %s.", stage, worker),
		Details: map[string]any{"stage": stage, "worker": worker}, Cause: cause,
	}
}

// DrainTimeout creates an error for an output queue that stayed empty too long.
func DrainTimeout(timeout time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeDrainTimeout, Message: fmt.Sprintf("No output and no completion marker within %s; the reducer appears stuck.", timeout),
		Details: map[string]any{"timeout": timeout.String()},
	}
}

// Cancelled creates an error for a run whose context was cancelled.
func Cancelled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "The pipeline was cancelled.",
		Cause: cause,
	}
}

// InvalidArgument creates an error for arguments a callable cannot bind.
func InvalidArgument(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("Invalid argument: %s", reason),
	}
}

// InvalidRecord creates an error for a record that cannot be encoded or decoded.
func InvalidRecord(line int, cause error) *AppError {
	details := make(map[string]any)
	if line > 0 {
		details["line"] = line
	}
	return &AppError{
		Code: ErrCodeInvalidRecord, Message: "The record is not valid JSON.",
		Details: details, Cause: cause,
	}
}

// IO creates an error for a failed read or write.
func IO(op, path string, cause error) *AppError {
	details := map[string]any{"operation": op}
	if path != "" {
		details["path"] = path
	}
	return &AppError{
		Code: ErrCodeIO, Message: fmt.Sprintf("Unable to %s records.", op),
		Details: details, Cause: cause,
	}
}

// Internal creates an error for a broken internal invariant.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected internal error occurred.",
		Cause: cause,
	}
}
