package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

func newTestService() (*Service, *memoryStore) {
	store := newMemoryStore(
		systemRole(1, RoleAdmin, Wildcard),
		systemRole(2, RoleManager, PermUsersView, PermUsersManage, PermRolesView, PermRolesManage),
		systemRole(4, RoleViewer, PermUsersView),
		customRole(10, 3, "ops", PermUsersView),
	)
	return NewService(store, NewResolver(store)), store
}

func pinned(tenantID int64) *tenants.Scope {
	return &tenants.Scope{TenantID: tenantID}
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService()

	roles, err := svc.List(context.Background(), pinned(3))
	require.NoError(t, err)
	assert.Len(t, roles, 4)

	roles, err = svc.List(context.Background(), pinned(9))
	require.NoError(t, err)
	assert.Len(t, roles, 3)
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	admin := tenantIdentity(3, RoleAdmin)

	t.Run("success", func(t *testing.T) {
		svc, _ := newTestService()
		role, err := svc.Create(ctx, pinned(3), admin, CreateRoleInput{
			Slug:        "support",
			Name:        "Support",
			Permissions: []string{PermUsersView, PermAuditView, PermUsersView},
		})
		require.NoError(t, err)
		assert.NotZero(t, role.ID)
		assert.Equal(t, RoleKindCustom, role.Kind)
		assert.Equal(t, int64(3), *role.TenantID)
		assert.Equal(t, []string{PermAuditView, PermUsersView}, role.Permissions)
	})

	t.Run("invalid input", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Create(ctx, pinned(3), admin, CreateRoleInput{
			Slug:        "Not A Slug",
			Permissions: []string{"clients.*"},
		})
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "slug")
		assert.Contains(t, verrs, "name")
		assert.Contains(t, verrs, "permissions")
	})

	t.Run("system slug is reserved", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Create(ctx, pinned(3), admin, CreateRoleInput{Slug: RoleViewer, Name: "Mine"})
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "slug")
	})

	t.Run("same slug in another tenant is allowed", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Create(ctx, pinned(9), tenantIdentity(9, RoleAdmin), CreateRoleInput{Slug: "ops", Name: "Ops"})
		assert.NoError(t, err)
	})

	t.Run("unique violation race", func(t *testing.T) {
		svc, store := newTestService()
		store.createErr = &pq.Error{Code: "23505", Constraint: roleTenantSlugConstraint}
		_, err := svc.Create(ctx, pinned(3), admin, CreateRoleInput{Slug: "support", Name: "Support"})
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "slug")
	})

	t.Run("cannot grant what you lack", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Create(ctx, pinned(3), tenantIdentity(3, RoleManager), CreateRoleInput{
			Slug:        "auditor",
			Name:        "Auditor",
			Permissions: []string{PermAuditView},
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("requires a tenant", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Create(ctx, tenants.AllTenantsScope(), &auth.Identity{SuperAdmin: true}, CreateRoleInput{Slug: "x", Name: "X"})
		assert.ErrorIs(t, err, tenants.ErrTenantRequired)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	admin := tenantIdentity(3, RoleAdmin)
	name := func(s string) *string { return &s }

	t.Run("rename custom role", func(t *testing.T) {
		svc, store := newTestService()
		role, err := svc.Update(ctx, pinned(3), admin, "ops", UpdateRoleInput{Name: name("Operations")})
		require.NoError(t, err)
		assert.Equal(t, "Operations", role.Name)

		stored, err := store.GetRole(ctx, "ops", role.TenantID)
		require.NoError(t, err)
		assert.Equal(t, "Operations", stored.Name)
	})

	t.Run("replace custom permissions", func(t *testing.T) {
		svc, _ := newTestService()
		role, err := svc.Update(ctx, pinned(3), admin, "ops", UpdateRoleInput{Permissions: []string{PermUsageView}})
		require.NoError(t, err)
		assert.Equal(t, []string{PermUsageView}, role.Permissions)
	})

	t.Run("system role cannot be renamed", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Update(ctx, pinned(3), &auth.Identity{SuperAdmin: true}, RoleViewer, UpdateRoleInput{Name: name("Watcher")})
		assert.ErrorIs(t, err, ErrImmutableRole)
	})

	t.Run("same name on system role is a no-op rename", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Update(ctx, pinned(3), &auth.Identity{SuperAdmin: true}, RoleViewer, UpdateRoleInput{
			Name:        name(RoleViewer),
			Permissions: []string{PermUsersView, PermTenantView},
		})
		assert.NoError(t, err)
	})

	t.Run("tenant admin cannot edit system permissions", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Update(ctx, pinned(3), admin, RoleViewer, UpdateRoleInput{Permissions: []string{PermUsersManage}})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("other tenant's role is not found", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Update(ctx, pinned(9), tenantIdentity(9, RoleAdmin), "ops", UpdateRoleInput{Name: name("Mine")})
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, store := newTestService()
		role, err := svc.Delete(ctx, pinned(3), "ops")
		require.NoError(t, err)
		assert.Equal(t, "ops", role.Slug)

		_, err = store.GetRole(ctx, "ops", role.TenantID)
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})

	t.Run("system role", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Delete(ctx, pinned(3), RoleAdmin)
		assert.ErrorIs(t, err, ErrImmutableRole)
	})

	t.Run("still assigned", func(t *testing.T) {
		svc, store := newTestService()
		store.assignments["ops"] = 2
		_, err := svc.Delete(ctx, pinned(3), "ops")
		assert.ErrorIs(t, err, ErrRoleInUse)
		assert.Contains(t, err.Error(), "2")
	})

	t.Run("all-tenants scope sees only system roles", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Delete(ctx, tenants.AllTenantsScope(), "ops")
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})
}
