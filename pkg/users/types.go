package users

import (
	"time"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

// User is an account. Super-admins have no tenant.
type User struct {
	ID                int64      `json:"id"`
	TenantID          *int64     `json:"tenant_id,omitempty"`
	RoleSlug          string     `json:"role"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	PasswordHash      string     `json:"-"`
	IsSuperAdmin      bool       `json:"is_super_admin"`
	IsActive          bool       `json:"is_active"`
	SuspendedAt       *time.Time `json:"suspended_at,omitempty"`
	SuspendedReason   string     `json:"suspended_reason,omitempty"`
	CredentialVersion int64      `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Principal returns the token-service view of the user
func (u *User) Principal() *auth.Principal {
	return &auth.Principal{
		UserID:            u.ID,
		TenantID:          u.TenantID,
		RoleSlug:          u.RoleSlug,
		SuperAdmin:        u.IsSuperAdmin,
		Active:            u.IsActive,
		CredentialVersion: u.CredentialVersion,
	}
}

// NewUser holds the fields InsertUser writes
type NewUser struct {
	TenantID     *int64
	RoleSlug     string
	Email        string
	Name         string
	PasswordHash string
	SuperAdmin   bool
}

// RegisterInput is the body of POST /auth/register
type RegisterInput struct {
	TenantName string `json:"tenant_name"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// LoginInput is the body of POST /auth/login
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshInput is the body of POST /auth/refresh
type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordInput is the body of PUT /auth/password
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// SuspendInput is the body of POST /users/{user_id}/suspend
type SuspendInput struct {
	Reason string `json:"reason"`
}

// AuthResult is returned by register, login and invitation acceptance
type AuthResult struct {
	User   *User           `json:"user"`
	Tenant *tenants.Tenant `json:"tenant,omitempty"`
	Tokens *auth.TokenPair `json:"tokens"`
}
