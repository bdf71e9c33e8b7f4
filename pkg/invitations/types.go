package invitations

import "time"

// Status of an invitation relative to a point in time
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusExpired  = "expired"
)

// Invitation is a pending or consumed offer to join a tenant with a role.
// Only the SHA-256 hash of its token is stored.
type Invitation struct {
	ID         int64      `json:"id"`
	TenantID   int64      `json:"tenant_id"`
	Email      string     `json:"email"`
	RoleSlug   string     `json:"role"`
	TokenHash  string     `json:"-"`
	InvitedBy  int64      `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Status     string     `json:"status,omitempty"`
}

// StatusAt returns the invitation's status at now
func (i *Invitation) StatusAt(now time.Time) string {
	switch {
	case i.AcceptedAt != nil:
		return StatusAccepted
	case now.After(i.ExpiresAt):
		return StatusExpired
	default:
		return StatusPending
	}
}

// CreateInput is the body of POST /users/invitations
type CreateInput struct {
	Email    string `json:"email"`
	RoleSlug string `json:"role"`
}

// AcceptInput is the body of POST /auth/invitation/{token}/accept
type AcceptInput struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Issued is returned by Create and Resend. Token is the plaintext, shown
// exactly once.
type Issued struct {
	Invitation *Invitation `json:"invitation"`
	Token      string      `json:"-"`
	AcceptURL  string      `json:"accept_url"`
}

// Summary is the public view of an invitation fetched by token
type Summary struct {
	Email      string    `json:"email"`
	RoleSlug   string    `json:"role"`
	TenantName string    `json:"tenant_name"`
	ExpiresAt  time.Time `json:"expires_at"`
}
