package invitations

import "net/http"

// ErrorKind identifies an invitation redemption failure
type ErrorKind string

const (
	KindNotFound        ErrorKind = "invitation_not_found"
	KindExpired         ErrorKind = "invitation_expired"
	KindAlreadyConsumed ErrorKind = "invitation_already_consumed"
)

var (
	ErrNotFound        = &InvitationError{Kind: KindNotFound}
	ErrExpired         = &InvitationError{Kind: KindExpired}
	ErrAlreadyConsumed = &InvitationError{Kind: KindAlreadyConsumed}
)

// InvitationError is returned when an invitation cannot be used
type InvitationError struct {
	Kind ErrorKind
}

func (e *InvitationError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return "invitation not found"
	case KindExpired:
		return "invitation has expired"
	case KindAlreadyConsumed:
		return "invitation has already been accepted"
	}
	return string(e.Kind)
}

// Is matches any InvitationError of the same kind
func (e *InvitationError) Is(target error) bool {
	t, ok := target.(*InvitationError)
	return ok && t.Kind == e.Kind
}

// StatusCode implements httputil.HTTPError
func (e *InvitationError) StatusCode() int {
	if e.Kind == KindNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// ErrorCode implements httputil.HTTPError
func (e *InvitationError) ErrorCode() string { return string(e.Kind) }
