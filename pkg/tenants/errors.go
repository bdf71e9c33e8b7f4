package tenants

import (
	"fmt"
	"net/http"
)

// ErrorKind identifies a tenant scoping failure
type ErrorKind string

const (
	KindSuspended ErrorKind = "tenant_suspended"
	KindRequired  ErrorKind = "tenant_required"
	KindForbidden ErrorKind = "tenant_forbidden"
	KindNotFound  ErrorKind = "tenant_not_found"
)

var (
	ErrTenantRequired  = &TenantError{Kind: KindRequired}
	ErrTenantForbidden = &TenantError{Kind: KindForbidden}
	ErrTenantNotFound  = &TenantError{Kind: KindNotFound}
)

// TenantError is returned by the scope guard and the tenant store
type TenantError struct {
	Kind     ErrorKind
	TenantID int64
	Reason   string
}

// SuspendedError builds the error returned for writes against t
func SuspendedError(t *Tenant) *TenantError {
	return &TenantError{Kind: KindSuspended, TenantID: t.ID, Reason: t.SuspendedReason}
}

func (e *TenantError) Error() string {
	switch e.Kind {
	case KindSuspended:
		if e.Reason != "" {
			return fmt.Sprintf("tenant is suspended: %s", e.Reason)
		}
		return "tenant is suspended"
	case KindRequired:
		return "a target tenant is required for this operation"
	case KindForbidden:
		return "access to this tenant is not allowed"
	case KindNotFound:
		return "tenant not found"
	}
	return string(e.Kind)
}

// Is matches any TenantError of the same kind
func (e *TenantError) Is(target error) bool {
	t, ok := target.(*TenantError)
	return ok && t.Kind == e.Kind
}

// StatusCode implements httputil.HTTPError
func (e *TenantError) StatusCode() int {
	switch e.Kind {
	case KindRequired:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusForbidden
	}
}

// ErrorCode implements httputil.HTTPError
func (e *TenantError) ErrorCode() string { return string(e.Kind) }

// Details exposes the suspension reason so clients can render a notice
func (e *TenantError) Details() map[string]string {
	if e.Kind != KindSuspended {
		return nil
	}
	return map[string]string{"reason": e.Reason}
}
