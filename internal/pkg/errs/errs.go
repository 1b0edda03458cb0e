/*
Package errs provides the application error taxonomy and its numeric error codes.

This file defines CustomError, the Kind classification and the helpers used to build,
wrap and inspect errors.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/higgyo/app-dam/internal/pkg/logx"
)

// Kind classifies an error into one of the taxonomy families.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindConflict
	KindNotFound
	KindUpload
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUpload:
		return "upload"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// CustomError is the error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Kind is the taxonomy family of the error.
	Kind Kind

	// Message is the user-facing error description.
	Message string

	// Status is the HTTP status code used when the error is rendered.
	Status int

	cause error
}

// Error returns the message, followed by the wrapped cause when there is one.
func (e CustomError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped backend cause.
func (e CustomError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a CustomError with the same code.
func (e CustomError) Is(target error) bool {
	var t *CustomError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError constructs a *CustomError from a predefined error code.
// The optional details are printf arguments for the message template. Unknown codes
// fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)
		templateErr = errorMap[ErrUnknown]
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = kindStatus[customErr.Kind]
	}
	if customErr.Status == 0 {
		customErr.Status = http.StatusInternalServerError
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code)
		}
	}

	return &customErr
}

// Wrap builds the error for code and attaches cause. A nil cause behaves like NewError.
func Wrap(code int, cause error) *CustomError {
	customErr := NewError(code)
	customErr.cause = cause
	return customErr
}

// As extracts the *CustomError from err's chain.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	if customErr, ok := As(err); ok {
		return customErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err belongs to kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the business code of err, or ErrUnknown for foreign errors.
func CodeOf(err error) int {
	if customErr, ok := As(err); ok {
		return customErr.Code
	}
	return ErrUnknown
}

// Normalize converts any error into a *CustomError, wrapping foreign errors as fallback.
func Normalize(err error, fallback int) *CustomError {
	if err == nil {
		return nil
	}
	if customErr, ok := As(err); ok {
		return customErr
	}
	return Wrap(fallback, err)
}

// Known reports whether code has a template in the error map.
func Known(code int) bool {
	_, ok := errorMap[code]
	return ok
}
