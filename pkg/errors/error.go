// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Malformed signals, orders, and configuration
//   - Data/Resource errors (200-299): Bad bar data, query and export failures
//   - Trading errors (500-599): Order and position lookup failures
//   - Engine/state errors (600-699): Engine state and invariant violations
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidSignal, "signal quantity must be positive")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeOrderNotFound, "order %s not found", orderID)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to query fills", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeInvariantViolation) { ... }
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InvariantViolationError reports a broken engine contract, such as an equity
// reconciliation mismatch or a duplicate fill. It carries the bar time and
// order that triggered the violation so the failing run can be diagnosed.
// Invariant violations indicate a bug in the engine, not bad input, and must
// halt the run.
type InvariantViolationError struct {
	BarTime time.Time // Market time of the bar being processed
	OrderID string    // Optional: order that triggered the violation
	Message string    // Human-readable description
}

// NewInvariantViolationError creates a new InvariantViolationError.
func NewInvariantViolationError(barTime time.Time, orderID, message string) *InvariantViolationError {
	return &InvariantViolationError{
		BarTime: barTime,
		OrderID: orderID,
		Message: message,
	}
}

// NewInvariantViolationErrorf creates a new InvariantViolationError with a formatted message.
func NewInvariantViolationErrorf(barTime time.Time, orderID, format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{
		BarTime: barTime,
		OrderID: orderID,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InvariantViolationError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("invariant violation at %s (order %s): %s", e.BarTime.Format(time.RFC3339), e.OrderID, e.Message)
	}

	return fmt.Sprintf("invariant violation at %s: %s", e.BarTime.Format(time.RFC3339), e.Message)
}

// IsInvariantViolation checks if an error is an InvariantViolationError.
// It uses errors.As to check the error chain.
func IsInvariantViolation(err error) bool {
	var invariantErr *InvariantViolationError

	return errors.As(err, &invariantErr)
}
