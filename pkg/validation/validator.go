package validation

import (
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the minimum accepted password length in characters
const MinPasswordLength = 8

var (
	slugPattern       = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	permissionPattern = regexp.MustCompile(`^(\*|[a-z_]+\.[a-z_]+)$`)
)

// Errors collects per-field validation failures. It renders as 422 with the
// field map in the details of the response body.
type Errors map[string]string

// Add records a failure for field, keeping the first message per field
func (e Errors) Add(field, message string) {
	if _, exists := e[field]; !exists {
		e[field] = message
	}
}

// Err returns nil when no failures were recorded
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) StatusCode() int            { return http.StatusUnprocessableEntity }
func (e Errors) ErrorCode() string          { return "validation_failed" }
func (e Errors) Details() map[string]string { return e }

// Required records a failure when value is blank
func (e Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
		return false
	}
	return true
}

// Email records a failure when value is not a bare email address
func (e Errors) Email(field, value string) bool {
	if !e.Required(field, value) {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		e.Add(field, "must be a valid email address")
		return false
	}
	return true
}

// Password records a failure when value is shorter than MinPasswordLength
func (e Errors) Password(field, value string) bool {
	if utf8.RuneCountInString(value) < MinPasswordLength {
		e.Add(field, fmt.Sprintf("must be at least %d characters", MinPasswordLength))
		return false
	}
	return true
}

// MaxLength records a failure when value exceeds max characters
func (e Errors) MaxLength(field, value string, max int) bool {
	if utf8.RuneCountInString(value) > max {
		e.Add(field, fmt.Sprintf("must be at most %d characters", max))
		return false
	}
	return true
}

// Positive records a failure when value is not greater than zero
func (e Errors) Positive(field string, value int64) bool {
	if value <= 0 {
		e.Add(field, "must be positive")
		return false
	}
	return true
}

// NonNegative records a failure when value is below zero
func (e Errors) NonNegative(field string, value int64) bool {
	if value < 0 {
		e.Add(field, "must not be negative")
		return false
	}
	return true
}

// Slug records a failure unless value is lowercase kebab-case
func (e Errors) Slug(field, value string) bool {
	if !slugPattern.MatchString(value) {
		e.Add(field, "must be lowercase letters, digits and single hyphens")
		return false
	}
	return true
}

// Permissions records a failure for any entry that is not "*" or
// "<resource>.<action>"
func (e Errors) Permissions(field string, perms []string) bool {
	for _, p := range perms {
		if !permissionPattern.MatchString(p) {
			e.Add(field, fmt.Sprintf("invalid permission %q", p))
			return false
		}
	}
	return true
}

// NormalizeEmail lowercases and trims an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
