package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// ErrorTypeTransport covers connection failures, timeouts and non-2xx
	// responses. It ends the current query only.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeSchema covers undecodable bodies and responses without hits.
	// It ends the current query only.
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeDestination covers failures creating or writing the output file.
	ErrorTypeDestination ErrorType = "destination"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeCanceled    ErrorType = "canceled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a classified failure. Code carries the HTTP status for
// transport errors and is 0 otherwise.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under the given type
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Type: t, Message: msg, Err: err}
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsFatal reports whether an error type must stop the whole run. Transport
// and schema errors only end the query that produced them.
func IsFatal(t ErrorType) bool {
	switch t {
	case ErrorTypeDestination, ErrorTypeConfig, ErrorTypeAuth:
		return true
	default:
		return false
	}
}
