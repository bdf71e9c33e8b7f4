package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies authentication failures
type ErrorKind string

const (
	KindExpired            ErrorKind = "token_expired"
	KindMalformed          ErrorKind = "token_malformed"
	KindInvalidated        ErrorKind = "token_invalidated"
	KindUserNotActive      ErrorKind = "user_not_active"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
)

var (
	ErrExpired            = &AuthError{Kind: KindExpired}
	ErrMalformed          = &AuthError{Kind: KindMalformed}
	ErrInvalidated        = &AuthError{Kind: KindInvalidated}
	ErrUserNotActive      = &AuthError{Kind: KindUserNotActive}
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials}
)

// AuthError is returned for every authentication failure. It always maps to 401.
type AuthError struct {
	Kind ErrorKind
	Err  error
}

func newAuthError(kind ErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func (e *AuthError) Error() string {
	msg := ""
	switch e.Kind {
	case KindExpired:
		msg = "token has expired"
	case KindMalformed:
		msg = "token is malformed"
	case KindInvalidated:
		msg = "token has been invalidated"
	case KindUserNotActive:
		msg = "user is not active"
	case KindInvalidCredentials:
		msg = "invalid email or password"
	default:
		msg = "authentication failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, auth.ErrExpired) works for any wrapped cause
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func (e *AuthError) StatusCode() int   { return http.StatusUnauthorized }
func (e *AuthError) ErrorCode() string { return string(e.Kind) }

// Headers advertises the bearer scheme on every 401
func (e *AuthError) Headers() map[string]string {
	return map[string]string{"WWW-Authenticate": fmt.Sprintf("Bearer error=%q", string(e.Kind))}
}
