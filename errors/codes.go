package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline errors
const (
	// ErrCodeConfiguration indicates an invalid pipeline configuration.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeDispatch indicates a transform or reduce callable failed.
	ErrCodeDispatch ErrorCode = "DISPATCH_ERROR"
	// ErrCodeDrainTimeout indicates the output was not completed in time.
	ErrCodeDrainTimeout ErrorCode = "DRAIN_TIMEOUT"
	// ErrCodeCancelled indicates the run context was cancelled.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Argument errors
const (
	// ErrCodeInvalidArgument indicates a callable received arguments it cannot bind.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Record I/O errors
const (
	// ErrCodeInvalidRecord indicates a record could not be encoded or decoded.
	ErrCodeInvalidRecord ErrorCode = "INVALID_RECORD"
	// ErrCodeIO indicates a read or write failure on the underlying stream.
	ErrCodeIO ErrorCode = "IO_ERROR"
)

// Internal errors
const (
	// ErrCodeInternal indicates a broken internal invariant.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// fatalCodes lists the codes that always tear down a running pipeline.
var fatalCodes = map[ErrorCode]bool{
	ErrCodeDispatch:     true,
	ErrCodeDrainTimeout: true,
	ErrCodeCancelled:    true,
	ErrCodeInternal:     true,
}

// IsFatalCode returns true if the code tears down a running pipeline.
func IsFatalCode(code ErrorCode) bool {
	return fatalCodes[code]
}
