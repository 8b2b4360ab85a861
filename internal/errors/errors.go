// Package errors defines the typed failures shared by the transport, storage
// and domain packages.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown          = "UNKNOWN"
	CodeTransport        = "TRANSPORT"
	CodeConflict         = "CONFLICT"
	CodeContentUnchanged = "CONTENT_UNCHANGED"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeValidation       = "VALIDATION"
	CodeDatabase         = "DATABASE"
	CodeConfig           = "CONFIG"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

func newError(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// NewTransportError reports a network or HTTP failure talking to the platform.
// Timeouts are transport errors too.
func NewTransportError(message string, cause error) error {
	return newError(CodeTransport, message, cause)
}

// NewConflictError reports that another poller owns the update stream.
func NewConflictError(message string, cause error) error {
	return newError(CodeConflict, message, cause)
}

// NewContentUnchangedError reports an edit rejected because the text is identical.
func NewContentUnchangedError(message string, cause error) error {
	return newError(CodeContentUnchanged, message, cause)
}

// NewNotFoundError reports a missing event, chat or message.
func NewNotFoundError(message string, cause error) error {
	return newError(CodeNotFound, message, cause)
}

// NewForbiddenError reports that the bot may no longer write to a chat.
func NewForbiddenError(message string, cause error) error {
	return newError(CodeForbidden, message, cause)
}

func NewValidationError(message string, cause error) error {
	return newError(CodeValidation, message, cause)
}

func NewDatabaseError(message string, cause error) error {
	return newError(CodeDatabase, message, cause)
}

func NewConfigError(message string, cause error) error {
	return newError(CodeConfig, message, cause)
}

func IsConflict(err error) bool         { return Code(err) == CodeConflict }
func IsContentUnchanged(err error) bool { return Code(err) == CodeContentUnchanged }
func IsNotFound(err error) bool         { return Code(err) == CodeNotFound }
func IsForbidden(err error) bool        { return Code(err) == CodeForbidden }
func IsValidation(err error) bool       { return Code(err) == CodeValidation }
func IsTransport(err error) bool        { return Code(err) == CodeTransport }
