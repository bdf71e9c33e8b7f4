package rbac

import (
	"fmt"
	"net/http"
)

// PolicyKind identifies an authorization or role policy failure
type PolicyKind string

const (
	KindForbidden     PolicyKind = "forbidden"
	KindImmutableRole PolicyKind = "immutable_role"
	KindRoleInUse     PolicyKind = "role_in_use"
	KindRoleNotFound  PolicyKind = "role_not_found"
)

var (
	ErrForbidden     = &PolicyError{Kind: KindForbidden}
	ErrImmutableRole = &PolicyError{Kind: KindImmutableRole}
	ErrRoleInUse     = &PolicyError{Kind: KindRoleInUse}
	ErrRoleNotFound  = &PolicyError{Kind: KindRoleNotFound}
)

// PolicyError is returned when an actor may not perform an action
type PolicyError struct {
	Kind       PolicyKind
	Permission string
	Message    string
}

// Forbidden builds the error for a missing permission
func Forbidden(perm string) *PolicyError {
	return &PolicyError{Kind: KindForbidden, Permission: perm}
}

func (e *PolicyError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindForbidden:
		if e.Permission != "" {
			return fmt.Sprintf("missing permission %s", e.Permission)
		}
		return "insufficient permissions"
	case KindImmutableRole:
		return "system roles cannot be renamed or deleted"
	case KindRoleInUse:
		return "role is still assigned"
	case KindRoleNotFound:
		return "role not found"
	}
	return string(e.Kind)
}

// Is matches any PolicyError of the same kind
func (e *PolicyError) Is(target error) bool {
	t, ok := target.(*PolicyError)
	return ok && t.Kind == e.Kind
}

// StatusCode implements httputil.HTTPError
func (e *PolicyError) StatusCode() int {
	switch e.Kind {
	case KindRoleInUse:
		return http.StatusConflict
	case KindRoleNotFound:
		return http.StatusNotFound
	default:
		return http.StatusForbidden
	}
}

// ErrorCode implements httputil.HTTPError
func (e *PolicyError) ErrorCode() string { return string(e.Kind) }
