package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated      Kind = "unauthenticated"
	KindInvalidCredential    Kind = "invalid_credential"
	KindCredentialExpired    Kind = "credential_expired"
	KindForbidden            Kind = "forbidden"
	KindBadRequest           Kind = "bad_request"
	KindConflict             Kind = "conflict"
	KindNotFound             Kind = "not_found"
	KindInvalidOrExpiredCode Kind = "invalid_or_expired_code"
	KindTooManyRequests      Kind = "too_many_requests"
	KindInternal             Kind = "internal"
)

// Error is the only error type that crosses the service boundary with a
// caller-visible message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Msg: "Internal server error", Err: err}
}

// ErrInvalidOrExpiredCode covers both a wrong code and an expired one.
var ErrInvalidOrExpiredCode = New(KindInvalidOrExpiredCode, "Invalid or expired OTP")

// KindOf returns the kind of err, treating anything unclassified as internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Status(kind Kind) int {
	switch kind {
	case KindUnauthenticated, KindInvalidCredential, KindCredentialExpired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest, KindConflict, KindInvalidOrExpiredCode:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
