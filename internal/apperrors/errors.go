// Package apperrors defines the error taxonomy shared by the service layer and the
// HTTP handlers. Services return *Error values (or wrap them); handlers translate
// the Kind into a status code in exactly one place so the mapping stays consistent
// across every endpoint.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the purpose of choosing a response.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindUnauthenticated    Kind = "unauthenticated"
	KindInvalidToken       Kind = "invalid_token"
	KindTokenExpired       Kind = "token_expired"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAdminNotFound      Kind = "admin_not_found"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal_error"
)

// Error is a classified application error. Message is safe to show to callers;
// Err carries the underlying cause for server-side logging only.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, apperrors.ErrNotFound) style checks work
// against the sentinels below regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is comparisons.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrAdminNotFound      = &Error{Kind: KindAdminNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrInternal           = &Error{Kind: KindInternal}
)

// Validation returns a validation error with optional field-level messages.
func Validation(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound returns a not-found error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict returns a duplicate-key error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Forbidden returns an authorization error for an authenticated caller lacking a role.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Internal wraps an unexpected failure. The message returned to callers is generic.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to its response status code.
//
// Missing credentials and a vanished subject are 401; a token that was presented but
// failed signature, claim or expiry checks is 403.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated, KindInvalidCredentials, KindAdminNotFound:
		return http.StatusUnauthorized
	case KindInvalidToken, KindTokenExpired, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// MsgInternal replaces the message of every internal error in responses.
const MsgInternal = "Internal server error."

// Response is the JSON body of every error response.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Code    Kind     `json:"code"`
	Errors  []string `json:"errors,omitempty"`
}

// ResponseFor maps err to a status code and body. Internal errors never expose their
// message or cause.
func ResponseFor(err error) (int, Response) {
	kind := KindOf(err)
	resp := Response{Message: MsgInternal, Code: kind}
	var e *Error
	if kind != KindInternal && errors.As(err, &e) {
		resp.Message = e.Message
		resp.Errors = e.Fields
	}
	return HTTPStatus(kind), resp
}
