// Package rbac resolves effective permissions from roles and guards routes
// with permission checks.
//
// # Roles
//
// A role is either a system role (seeded, tenant-less: admin, manager, sales,
// viewer) or a custom role owned by one tenant. Permissions are opaque
// "resource.action" strings; "*" grants everything.
//
// System roles cannot be renamed or deleted (PolicyError kind
// immutable_role). Their permission lists may be edited by super-admins.
// Custom roles can be deleted once no user or pending invitation references
// them.
//
// # Checks
//
//	resolver := rbac.NewResolver(rbac.NewStore(db))
//	ok, err := resolver.HasPermission(ctx, identity, rbac.PermUsersManage)
//
// Super-admins pass every check without a role lookup. Everyone else has
// their role re-read on each check, so permission changes apply on the next
// request. NewCachedRoleStore adds an optional LRU that is purged on every
// role write made through it.
//
// # Middleware
//
//	pm := rbac.NewPermissionMiddleware(resolver)
//	router.Handle("/users", pm.RequirePermission(rbac.PermUsersView)(handler))
//
// Missing identity yields 401, a failed check 403 with code forbidden.
package rbac
