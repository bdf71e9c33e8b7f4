// Package tenants owns tenant records and the scope guard that pins every
// authenticated request to exactly one tenant.
//
// # Scope
//
// Guard.ResolveTenant turns a verified identity into a *Scope. Store
// functions take the scope as a parameter and apply it with Filter:
//
//	where, args := scope.Filter("u.tenant_id", nil)
//	rows, err := db.QueryContext(ctx, "SELECT ... FROM users u WHERE "+where, args...)
//
// Regular users are always pinned to the tenant in their token. Super-admins
// name a target tenant out of band (path or X-Tenant-ID header) or use
// routes registered as cross-tenant, where the scope spans all tenants.
//
// # Suspension
//
// A suspended tenant keeps read access. CheckWritable rejects every other
// method with a TenantError of kind tenant_suspended (HTTP 403) carrying the
// suspension reason.
package tenants
