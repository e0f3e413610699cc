// Package errors provides the structured error type shared by every funnel
// package. Errors carry a machine-readable code, a human-readable message,
// optional details and an underlying cause.
package errors
