package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidationFailed   Kind = "VALIDATION_FAILED"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindDuplicateEmail     Kind = "DUPLICATE_EMAIL"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindTimeout            Kind = "TIMEOUT"
	KindInternal           Kind = "INTERNAL"
)

// Sentinels for errors.Is. Two *Error values match when their kinds match.
var (
	ErrValidationFailed   = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "access denied"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail, Message: "user with this email already exists"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Message: "invalid alert state transition"}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable, Message: "storage unavailable"}
	ErrTimeout            = &Error{Kind: KindTimeout, Message: "operation timed out"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal server error"}
)

// Error is the typed failure carried from the store and services up to the HTTP layer.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to err. A nil err yields nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidationFailed, message)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, resource+" not found")
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return Newf(KindInvalidTransition, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Message
	}
	return ErrInternal.Message
}

// FromContext converts context expiry into a Timeout error and passes anything else through.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, KindTimeout, ErrTimeout.Message)
	}
	return err
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidationFailed, KindDuplicateEmail, KindInvalidTransition:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
