package kbase

import (
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFLICT = "conflict"
	EINTERNAL = "internal"
	EINVALID  = "invalid"
	ENOTFOUND = "not_found"

	// Failure taxonomy of the ingestion and query paths.
	EFETCH       = "fetch"       // permanent fetch failure such as a 4xx response; the page is skipped
	EUNAVAILABLE = "unavailable" // transient fetch failure such as a network error, 429 or 5xx; may be retried
	EPARSE       = "parse"       // malformed markup; the page is dropped
	EPERSIST     = "persist"     // document store operation failed; counted, run continues
	ECORRUPT     = "corrupt"     // malformed cache snapshot; bad entries discarded
	EGENERATE    = "generate"    // generation collaborator error or timeout
)

// Error represents an application-specific error.
type Error struct {
	// Machine-readable error code.
	Code string

	// Human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("kbase error: code=%s message=%s", e.Code, e.Message)
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
