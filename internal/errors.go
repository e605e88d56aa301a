package internal

import (
	"errors"
	"fmt"
)

// Kind classifies the errors a command handler can surface to a client.
// Every Kind maps to exactly one HTTP status via httperr.go's formatter, so
// handlers never need to parse error text to decide a response code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindStateConflict
	KindLocked
	KindFull
	KindExpired
	KindRateLimited
)

// Error is the typed error every room/store/handler operation returns on
// failure. It deliberately carries a human-safe Message distinct from any
// wrapped internal error, so the central formatter never risks leaking
// implementation detail to a client.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds; only meaningful for KindRateLimited
	Code       string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func wrapErr(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

func errValidation(format string, a ...any) *Error {
	return newErr(KindValidation, "VALIDATION", fmt.Sprintf(format, a...))
}

func errAuth(message string) *Error {
	return newErr(KindAuth, "AUTH", message)
}

func errNotFound(format string, a ...any) *Error {
	return newErr(KindNotFound, "NOT_FOUND", fmt.Sprintf(format, a...))
}

func errStateConflict(format string, a ...any) *Error {
	return newErr(KindStateConflict, "STATE_CONFLICT", fmt.Sprintf(format, a...))
}

func errLocked(message string) *Error {
	return newErr(KindLocked, "LOCKED", message)
}

func errFull(message string) *Error {
	return newErr(KindFull, "FULL", message)
}

func errExpired(message string) *Error {
	return newErr(KindExpired, "EXPIRED", message)
}

func errRateLimited(retryAfter int) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Code:       "RATE_LIMITED",
		Message:    "too many requests, please wait and try again",
		RetryAfter: retryAfter,
	}
}

func errInternal(cause error) *Error {
	return wrapErr(KindInternal, "INTERNAL", "an unexpected error occurred", cause)
}

// AsError unwraps err into a *Error, classifying anything else as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return errInternal(err)
}
