package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

const roleTenantSlugConstraint = "roles_tenant_slug_key"

// Service implements role management
type Service struct {
	store    RoleStore
	resolver *Resolver
}

// NewService creates a role service. The resolver should read through the
// same store so cache invalidation covers both.
func NewService(store RoleStore, resolver *Resolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// List returns the roles assignable in scope
func (s *Service) List(ctx context.Context, scope *tenants.Scope) ([]*Role, error) {
	roles, err := s.store.ListRoles(ctx, scope)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []*Role{}
	}
	return roles, nil
}

// Create adds a custom role to the scope's tenant
func (s *Service) Create(ctx context.Context, scope *tenants.Scope, actor *auth.Identity, input CreateRoleInput) (*Role, error) {
	tenantID, err := scope.Require()
	if err != nil {
		return nil, err
	}

	errs := validation.Errors{}
	errs.Slug("slug", input.Slug)
	errs.Required("name", input.Name)
	errs.MaxLength("name", input.Name, 100)
	errs.Permissions("permissions", input.Permissions)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.checkGrantable(ctx, actor, input.Permissions); err != nil {
		return nil, err
	}

	// System slugs are reserved in every tenant
	if _, err := s.store.GetRole(ctx, input.Slug, &tenantID); err == nil {
		return nil, validation.Errors{"slug": "a role with this slug already exists"}
	} else if !errors.Is(err, ErrRoleNotFound) {
		return nil, err
	}

	role := &Role{
		Kind:        RoleKindCustom,
		TenantID:    &tenantID,
		Slug:        input.Slug,
		Name:        input.Name,
		Permissions: dedupe(input.Permissions),
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		if postgres.IsUniqueViolation(err, roleTenantSlugConstraint) {
			return nil, validation.Errors{"slug": "a role with this slug already exists"}
		}
		return nil, err
	}
	return role, nil
}

// Update renames a custom role or replaces the permissions of any role.
// System roles keep their name and are global, so only super-admins may
// change their permissions.
func (s *Service) Update(ctx context.Context, scope *tenants.Scope, actor *auth.Identity, slug string, input UpdateRoleInput) (*Role, error) {
	current, err := s.lookup(ctx, scope, slug)
	if err != nil {
		return nil, err
	}
	role := *current

	if input.Name != nil && *input.Name != role.Name {
		if role.IsSystem() {
			return nil, ErrImmutableRole
		}
		errs := validation.Errors{}
		errs.Required("name", *input.Name)
		errs.MaxLength("name", *input.Name, 100)
		if err := errs.Err(); err != nil {
			return nil, err
		}
		role.Name = *input.Name
	}

	if input.Permissions != nil {
		if role.IsSystem() && (actor == nil || !actor.SuperAdmin) {
			return nil, &PolicyError{Kind: KindForbidden, Message: "only super-admins may edit system role permissions"}
		}
		errs := validation.Errors{}
		errs.Permissions("permissions", input.Permissions)
		if err := errs.Err(); err != nil {
			return nil, err
		}
		if err := s.checkGrantable(ctx, actor, input.Permissions); err != nil {
			return nil, err
		}
		role.Permissions = dedupe(input.Permissions)
	}

	if err := s.store.UpdateRole(ctx, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// Delete removes an unassigned custom role
func (s *Service) Delete(ctx context.Context, scope *tenants.Scope, slug string) (*Role, error) {
	role, err := s.lookup(ctx, scope, slug)
	if err != nil {
		return nil, err
	}
	if role.IsSystem() {
		return nil, ErrImmutableRole
	}

	count, err := s.store.CountAssignments(ctx, role.Slug, *role.TenantID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &PolicyError{Kind: KindRoleInUse, Message: fmt.Sprintf("role is assigned to %d users or pending invitations", count)}
	}

	if err := s.store.DeleteRole(ctx, role.ID); err != nil {
		return nil, err
	}
	return role, nil
}

// lookup finds slug in the scope's tenant. An all-tenants scope only sees
// system roles.
func (s *Service) lookup(ctx context.Context, scope *tenants.Scope, slug string) (*Role, error) {
	var tenantID *int64
	if !scope.AllTenants {
		id := scope.TenantID
		tenantID = &id
	}
	return s.store.GetRole(ctx, slug, tenantID)
}

// checkGrantable stops actors from granting permissions they do not hold
func (s *Service) checkGrantable(ctx context.Context, actor *auth.Identity, perms []string) error {
	if len(perms) == 0 {
		return nil
	}
	ok, err := s.resolver.HasAll(ctx, actor, perms...)
	if err != nil {
		return err
	}
	if !ok {
		return &PolicyError{Kind: KindForbidden, Message: "cannot grant permissions you do not hold"}
	}
	return nil
}

func dedupe(perms []string) []string {
	return NewPermissionSet(perms...).List()
}
