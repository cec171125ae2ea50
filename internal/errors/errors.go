package errors

import (
	"errors"
	"fmt"
)

// Code represents an error code for categorizing errors
type Code string

const (
	// CodeUnknown indicates an unknown error
	CodeUnknown Code = "unknown"

	// CodeInvalidArgument indicates client specified an invalid argument
	CodeInvalidArgument Code = "invalid_argument"

	// CodeNotFound indicates a requested resource was not found
	CodeNotFound Code = "not_found"

	// CodeAlreadyExists indicates an attempt to create a resource that already exists
	CodeAlreadyExists Code = "already_exists"

	// CodePermissionDenied indicates the caller is not allowed to drive the operation
	CodePermissionDenied Code = "permission_denied"

	// CodeFailedPrecondition indicates the system is not in a state that allows the operation
	CodeFailedPrecondition Code = "failed_precondition"

	// CodeResourceExhausted indicates an actor lacks the resource (wear, ability) to act
	CodeResourceExhausted Code = "resource_exhausted"

	// CodeResolution indicates a descriptor could not be resolved against the catalog
	CodeResolution Code = "resolution"

	// CodePerform indicates an action effect failed while executing
	CodePerform Code = "perform"

	// CodeInternal indicates internal system error
	CodeInternal Code = "internal"

	// CodeUnavailable indicates the service is busy or stopped
	CodeUnavailable Code = "unavailable"

	// CodeValidation indicates a validation error
	CodeValidation Code = "validation"
)

// Error represents an application error with code and metadata
type Error struct {
	// Code is the error code
	Code Code

	// Message is the error message
	Message string

	// Cause is the wrapped error
	Cause error

	// Meta contains additional context
	Meta map[string]any
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithMeta adds metadata to the error (builder pattern)
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new error with formatted message
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	// Keep the code of our own errors
	var atbErr *Error
	if errors.As(err, &atbErr) {
		return &Error{
			Code:    atbErr.Code,
			Message: message,
			Cause:   err,
			Meta:    copyMeta(atbErr.Meta),
		}
	}

	return &Error{
		Code:    CodeUnknown,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific code
func WrapWithCode(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := Wrap(err, message)
	wrapped.Code = code
	return wrapped
}

// Helper functions for common error types

// NotFound creates a not found error
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a formatted not found error
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(message string) *Error {
	return New(CodeInvalidArgument, message)
}

// InvalidArgumentf creates a formatted invalid argument error
func InvalidArgumentf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

// AlreadyExistsf creates a formatted already exists error
func AlreadyExistsf(format string, args ...any) *Error {
	return Newf(CodeAlreadyExists, format, args...)
}

// PermissionDenied creates a privilege error
func PermissionDenied(message string) *Error {
	return New(CodePermissionDenied, message)
}

// FailedPrecondition creates a failed precondition error
func FailedPrecondition(message string) *Error {
	return New(CodeFailedPrecondition, message)
}

// FailedPreconditionf creates a formatted failed precondition error
func FailedPreconditionf(format string, args ...any) *Error {
	return Newf(CodeFailedPrecondition, format, args...)
}

// ResourceExhaustedf creates a formatted resource exhausted error
func ResourceExhaustedf(format string, args ...any) *Error {
	return Newf(CodeResourceExhausted, format, args...)
}

// Resolutionf creates a formatted resolution error
func Resolutionf(format string, args ...any) *Error {
	return Newf(CodeResolution, format, args...)
}

// Perform wraps an effect failure
func Perform(err error, message string) *Error {
	return WrapWithCode(err, CodePerform, message)
}

// Unavailable creates an unavailable error
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Internalf creates a formatted internal error
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Validationf creates a formatted validation error
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Error checking functions

// Is checks if the error is of a specific code
func Is(err error, code Code) bool {
	var atbErr *Error
	if errors.As(err, &atbErr) {
		return atbErr.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return Is(err, CodeInvalidArgument)
}

// IsAlreadyExists checks if the error is an already exists error
func IsAlreadyExists(err error) bool {
	return Is(err, CodeAlreadyExists)
}

// IsPermissionDenied checks if the error is a privilege error
func IsPermissionDenied(err error) bool {
	return Is(err, CodePermissionDenied)
}

// IsResourceExhausted checks if the error is a resource exhausted error
func IsResourceExhausted(err error) bool {
	return Is(err, CodeResourceExhausted)
}

// IsResolution checks if the error is a resolution error
func IsResolution(err error) bool {
	return Is(err, CodeResolution)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return Is(err, CodeValidation)
}

// IsFailedPrecondition checks if the error is a failed precondition error
func IsFailedPrecondition(err error) bool {
	return Is(err, CodeFailedPrecondition)
}

// IsPerform checks if the error is a perform error
func IsPerform(err error) bool {
	return Is(err, CodePerform)
}

// IsUnavailable checks if the error is an unavailable error
func IsUnavailable(err error) bool {
	return Is(err, CodeUnavailable)
}

// GetCode returns the error code
func GetCode(err error) Code {
	var atbErr *Error
	if errors.As(err, &atbErr) {
		return atbErr.Code
	}
	return CodeUnknown
}

// GetMeta returns the error metadata
func GetMeta(err error) map[string]any {
	var atbErr *Error
	if errors.As(err, &atbErr) {
		return atbErr.Meta
	}
	return nil
}

// copyMeta creates a copy of the metadata map
func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}

	copied := make(map[string]any, len(meta))
	for k, v := range meta {
		copied[k] = v
	}
	return copied
}
