package errprocess

import (
	"errors"
	"fmt"
)

// Code classifies an application error for callers that need to map it
// onto an HTTP or websocket response.
type Code string

const (
	// CodeValidation malformed input, caller can fix and resubmit
	CodeValidation Code = "VALIDATION"
	// CodeForbidden actor is not a participant of the target conversation
	CodeForbidden Code = "PERMISSION_DENIED"
	// CodeNotFound referenced conversation or message does not exist
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict self conversation or an unresolved get-or-create race
	CodeConflict Code = "CONFLICT"
	// CodeUnavailable backing store temporarily unavailable
	CodeUnavailable Code = "UNAVAILABLE"
	// CodeInternal everything else
	CodeInternal Code = "INTERNAL"
)

// AppError definition coded error
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap expose the wrapped cause
func (e *AppError) Unwrap() error { return e.Cause }

// New create a coded error
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap create a coded error keeping the cause
func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Validation create CodeValidation error
func Validation(msg string) error { return New(CodeValidation, msg) }

// Forbidden create CodeForbidden error
func Forbidden(msg string) error { return New(CodeForbidden, msg) }

// NotFound create CodeNotFound error
func NotFound(msg string) error { return New(CodeNotFound, msg) }

// Conflict create CodeConflict error
func Conflict(msg string) error { return New(CodeConflict, msg) }

// Unavailable create CodeUnavailable error
func Unavailable(msg string, cause error) error {
	return Wrap(CodeUnavailable, msg, cause)
}

// CodeOf extract the code of err, CodeInternal when err carries none
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is report whether err carries the given code
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
