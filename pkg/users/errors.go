package users

import (
	"errors"
	"net/http"
)

// ErrEmailTaken is returned by InsertUser when the email is registered
var ErrEmailTaken = errors.New("email already registered")

// Error is a user-management failure with a fixed HTTP mapping
type Error struct {
	Code    string
	Status  int
	Message string
}

var (
	ErrNotFound             = &Error{Code: "user_not_found", Status: http.StatusNotFound, Message: "user not found"}
	ErrWrongCurrentPassword = &Error{Code: "invalid_current_password", Status: http.StatusBadRequest, Message: "current password is incorrect"}
)

func (e *Error) Error() string { return e.Message }

// StatusCode implements httputil.HTTPError
func (e *Error) StatusCode() int { return e.Status }

// ErrorCode implements httputil.HTTPError
func (e *Error) ErrorCode() string { return e.Code }
