package rbac

import (
	"sort"
	"time"
)

// RoleKind separates seeded global roles from tenant-defined ones
type RoleKind string

const (
	// RoleKindSystem roles are tenant-less, seeded, and cannot be renamed or deleted
	RoleKindSystem RoleKind = "system"
	// RoleKindCustom roles belong to exactly one tenant
	RoleKindCustom RoleKind = "custom"
)

// Wildcard grants every permission
const Wildcard = "*"

// Permissions checked by the core. Roles may carry any other dotted string;
// the resolver only does set membership.
const (
	PermUsersView     = "users.view"
	PermUsersManage   = "users.manage"
	PermRolesView     = "roles.view"
	PermRolesManage   = "roles.manage"
	PermTenantView    = "tenant.view"
	PermTenantsManage = "tenants.manage"
	PermUsageView     = "usage.view"
	PermAIUse         = "ai.use"
	PermAuditView     = "audit.view"
)

// Seeded system role slugs
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleSales   = "sales"
	RoleViewer  = "viewer"
)

// Role is a named permission set
type Role struct {
	ID          int64     `json:"id"`
	Kind        RoleKind  `json:"kind"`
	TenantID    *int64    `json:"tenant_id,omitempty"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsSystem reports whether the role is a protected system role
func (r *Role) IsSystem() bool {
	return r.Kind == RoleKindSystem
}

// VisibleTo reports whether the role may be assigned inside tenantID
func (r *Role) VisibleTo(tenantID int64) bool {
	return r.IsSystem() || (r.TenantID != nil && *r.TenantID == tenantID)
}

// CreateRoleInput is the body of POST /roles
type CreateRoleInput struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// UpdateRoleInput is the body of PUT /roles/{slug}. Nil fields are unchanged.
type UpdateRoleInput struct {
	Name        *string  `json:"name"`
	Permissions []string `json:"permissions"`
}

// PermissionSet is the effective permission set of a role
type PermissionSet struct {
	all   bool
	perms map[string]struct{}
}

// NewPermissionSet builds a set from raw permission strings
func NewPermissionSet(perms ...string) PermissionSet {
	set := PermissionSet{perms: make(map[string]struct{}, len(perms))}
	for _, p := range perms {
		if p == Wildcard {
			set.all = true
		}
		set.perms[p] = struct{}{}
	}
	return set
}

// Has reports whether perm is granted
func (s PermissionSet) Has(perm string) bool {
	if s.all {
		return true
	}
	_, ok := s.perms[perm]
	return ok
}

// IsWildcard reports whether the set grants everything
func (s PermissionSet) IsWildcard() bool {
	return s.all
}

// List returns the granted permissions in sorted order
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
