// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and unsupported (deprecated) API usage
//   - Configuration errors (100-199): Chain wiring (cycles, duplicate/unknown nodes,
//     dependency violations), invalid intents and invalid engine configuration
//   - Concurrency errors (200-299): Structural mutation attempted during a dispatch
//   - Dispatch errors (400-499): A stage failed while handling an interval event
//   - Broker errors (500-599): Order submission, cancellation and fill lookups
//   - Report errors (600-699): Report sink failures
//   - Market data errors (700-799): Bar source failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeUnknownNode, "anchor is not part of the chain")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeCycle, "%s cannot depend on %s", consumer, producer)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeDispatch, "stage failed", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeCycle) { ... }
package errors

import (
	"errors"
	"fmt"
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

// GetCodes returns every ErrorCode found in the error chain, outermost first.
func GetCodes(err error) []ErrorCode {
	var codes []ErrorCode

	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}

		codes = append(codes, e.Code)
		err = e.Cause
	}

	return codes
}

// HasCodeInChain checks if any *Error in the chain carries the given ErrorCode.
func HasCodeInChain(err error, code ErrorCode) bool {
	for _, c := range GetCodes(err) {
		if c == code {
			return true
		}
	}

	return false
}

// IsConfigurationError reports whether the outermost error is a configuration error
// (cycle, duplicate node, unknown node, dependency violation, invalid intent or config).
func IsConfigurationError(err error) bool {
	code := GetCode(err)

	return code >= ErrCodeCycle && code < ErrCodeConcurrentMutation
}

// IsDispatchError reports whether the error chain contains a dispatch failure.
func IsDispatchError(err error) bool {
	return HasCodeInChain(err, ErrCodeDispatch)
}

// IsConcurrentMutationError reports whether the error chain contains a rejected mutation.
func IsConcurrentMutationError(err error) bool {
	return HasCodeInChain(err, ErrCodeConcurrentMutation)
}

// Unsupported returns the error produced by members retained only for migration.
func Unsupported(member string, replacement string) *Error {
	return Newf(ErrCodeUnsupported, "%s is unsupported, use %s instead", member, replacement)
}

// IsUnsupported reports whether the error was produced by a deprecated member.
func IsUnsupported(err error) bool {
	return HasCode(err, ErrCodeUnsupported)
}
