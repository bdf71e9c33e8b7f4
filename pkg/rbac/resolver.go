package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

// RoleReader loads the role an actor references. tenantID nil restricts the
// lookup to system roles.
type RoleReader interface {
	GetRole(ctx context.Context, slug string, tenantID *int64) (*Role, error)
}

// Resolver evaluates permission checks. It reads the actor's current role on
// every call, so a role change applies from the actor's next request.
type Resolver struct {
	roles RoleReader
}

// NewResolver creates a resolver over roles
func NewResolver(roles RoleReader) *Resolver {
	return &Resolver{roles: roles}
}

// EffectivePermissions returns the permission set granted by role
func (r *Resolver) EffectivePermissions(role *Role) PermissionSet {
	if role == nil {
		return NewPermissionSet()
	}
	return NewPermissionSet(role.Permissions...)
}

// PermissionsFor loads the actor's role and returns its permission set.
// Super-admins get the wildcard set without a lookup. A role that no longer
// exists grants nothing.
func (r *Resolver) PermissionsFor(ctx context.Context, actor *auth.Identity) (PermissionSet, error) {
	if actor == nil {
		return NewPermissionSet(), nil
	}
	if actor.SuperAdmin {
		return NewPermissionSet(Wildcard), nil
	}

	role, err := r.roles.GetRole(ctx, actor.RoleSlug, actor.TenantID)
	if errors.Is(err, ErrRoleNotFound) {
		return NewPermissionSet(), nil
	}
	if err != nil {
		return PermissionSet{}, fmt.Errorf("failed to load role %s: %w", actor.RoleSlug, err)
	}
	return r.EffectivePermissions(role), nil
}

// HasPermission reports whether actor holds perm
func (r *Resolver) HasPermission(ctx context.Context, actor *auth.Identity, perm string) (bool, error) {
	if actor != nil && actor.SuperAdmin {
		return true, nil
	}
	set, err := r.PermissionsFor(ctx, actor)
	if err != nil {
		return false, err
	}
	return set.Has(perm), nil
}

// HasAny reports whether actor holds at least one of perms
func (r *Resolver) HasAny(ctx context.Context, actor *auth.Identity, perms ...string) (bool, error) {
	if actor != nil && actor.SuperAdmin {
		return true, nil
	}
	set, err := r.PermissionsFor(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if set.Has(p) {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether actor holds every one of perms
func (r *Resolver) HasAll(ctx context.Context, actor *auth.Identity, perms ...string) (bool, error) {
	if actor != nil && actor.SuperAdmin {
		return true, nil
	}
	set, err := r.PermissionsFor(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if !set.Has(p) {
			return false, nil
		}
	}
	return true, nil
}

// Authorize returns a forbidden PolicyError unless actor holds perm
func (r *Resolver) Authorize(ctx context.Context, actor *auth.Identity, perm string) error {
	ok, err := r.HasPermission(ctx, actor, perm)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden(perm)
	}
	return nil
}
