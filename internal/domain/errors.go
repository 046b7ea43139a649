package domain

import (
	"errors"
	"time"
)

// ErrorKind es la categoría legible por máquina de un fallo esperado.
type ErrorKind string

const (
	KindUnauthorized   ErrorKind = "unauthorized"
	KindConflict       ErrorKind = "conflict"
	KindNotFound       ErrorKind = "not_found"
	KindBadRequest     ErrorKind = "bad_request"
	KindRateLimited    ErrorKind = "rate_limited"
	KindInvalidGrant   ErrorKind = "invalid_grant"
	KindInvalidClient  ErrorKind = "invalid_client"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindExpired        ErrorKind = "expired"
)

// AuthError representa un fallo esperado de autenticación. Cualquier otro error
// que devuelvan los servicios es interno.
type AuthError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is compara por Kind, de modo que errors.Is(err, ErrUnauthorized) funciona
// con cualquier mensaje.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized   = &AuthError{Kind: KindUnauthorized}
	ErrConflict       = &AuthError{Kind: KindConflict}
	ErrNotFound       = &AuthError{Kind: KindNotFound}
	ErrBadRequest     = &AuthError{Kind: KindBadRequest}
	ErrRateLimited    = &AuthError{Kind: KindRateLimited}
	ErrInvalidGrant   = &AuthError{Kind: KindInvalidGrant}
	ErrInvalidClient  = &AuthError{Kind: KindInvalidClient}
	ErrInvalidRequest = &AuthError{Kind: KindInvalidRequest}
	ErrExpired        = &AuthError{Kind: KindExpired}
)

func Unauthorized(msg string) error   { return &AuthError{Kind: KindUnauthorized, Message: msg} }
func Conflict(msg string) error       { return &AuthError{Kind: KindConflict, Message: msg} }
func NotFound(msg string) error       { return &AuthError{Kind: KindNotFound, Message: msg} }
func BadRequest(msg string) error     { return &AuthError{Kind: KindBadRequest, Message: msg} }
func InvalidGrant(msg string) error   { return &AuthError{Kind: KindInvalidGrant, Message: msg} }
func InvalidClient(msg string) error  { return &AuthError{Kind: KindInvalidClient, Message: msg} }
func InvalidRequest(msg string) error { return &AuthError{Kind: KindInvalidRequest, Message: msg} }
func Expired(msg string) error        { return &AuthError{Kind: KindExpired, Message: msg} }

// RateLimited no recorta retryAfter; el limitador ya lo entrega >= 0.
func RateLimited(retryAfter time.Duration) error {
	return &AuthError{Kind: KindRateLimited, Message: "too many requests", RetryAfter: retryAfter}
}

// AsAuthError extrae el AuthError de una cadena de errores.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
