// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/backoffice/pkg/observability"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError writes a generic 500. The cause is logged, never echoed.
func WriteInternalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).WithError(err).
		WithField("path", r.URL.Path).
		Error("internal error")
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// HTTPError is implemented by domain errors that know how they surface over
// HTTP. Anything else reaching WriteServiceError is treated as internal.
type HTTPError interface {
	error
	StatusCode() int
	ErrorCode() string
}

// DetailedError optionally adds per-field or contextual details to the body
type DetailedError interface {
	Details() map[string]string
}

// HeaderError optionally adds response headers, e.g. Retry-After on 429
type HeaderError interface {
	Headers() map[string]string
}

// WriteServiceError maps err onto a structured JSON error response
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		WriteInternalError(w, r, err)
		return
	}

	if h, ok := httpErr.(HeaderError); ok {
		for k, v := range h.Headers() {
			w.Header().Set(k, v)
		}
	}

	resp := ErrorResponse{
		Error:   http.StatusText(httpErr.StatusCode()),
		Code:    httpErr.ErrorCode(),
		Message: httpErr.Error(),
	}
	if d, ok := httpErr.(DetailedError); ok {
		resp.Details = d.Details()
	}

	WriteJSON(w, httpErr.StatusCode(), resp)
}
