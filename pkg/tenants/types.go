package tenants

import (
	"fmt"
	"time"
)

// Tenant is an isolated organization sharing the deployment
type Tenant struct {
	ID              int64      `json:"id"`
	Slug            string     `json:"slug"`
	Name            string     `json:"name"`
	IsActive        bool       `json:"is_active"`
	SuspendedAt     *time.Time `json:"suspended_at,omitempty"`
	SuspendedReason string     `json:"suspended_reason,omitempty"`
	BillingTimezone string     `json:"billing_timezone"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Suspended reports whether writes are frozen for the tenant
func (t *Tenant) Suspended() bool {
	return !t.IsActive || t.SuspendedAt != nil
}

// Location returns the billing timezone, falling back to UTC for unknown names
func (t *Tenant) Location() *time.Location {
	if t.BillingTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.BillingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Scope is the tenant context of one request. It is either pinned to a single
// tenant or, for super-admins on cross-tenant routes, spans all tenants.
type Scope struct {
	TenantID   int64
	AllTenants bool
	Tenant     *Tenant
	SuperAdmin bool
}

// PinnedScope returns a scope restricted to t
func PinnedScope(t *Tenant, superAdmin bool) *Scope {
	return &Scope{TenantID: t.ID, Tenant: t, SuperAdmin: superAdmin}
}

// AllTenantsScope returns an unpinned super-admin scope
func AllTenantsScope() *Scope {
	return &Scope{AllTenants: true, SuperAdmin: true}
}

// Filter returns a WHERE predicate restricting column to the scope's tenant,
// appending its argument to args. An all-tenants scope yields TRUE.
func (s *Scope) Filter(column string, args []interface{}) (string, []interface{}) {
	if s.AllTenants {
		return "TRUE", args
	}
	args = append(args, s.TenantID)
	return fmt.Sprintf("%s = $%d", column, len(args)), args
}

// Require returns the pinned tenant id. Writes to tenant-owned rows need one.
func (s *Scope) Require() (int64, error) {
	if s.AllTenants {
		return 0, ErrTenantRequired
	}
	return s.TenantID, nil
}

// Allows reports whether a row owned by tenantID is visible in the scope
func (s *Scope) Allows(tenantID int64) bool {
	return s.AllTenants || s.TenantID == tenantID
}
