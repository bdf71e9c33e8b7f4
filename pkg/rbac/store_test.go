package rbac

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/tenants"
)

var roleRowColumns = []string{"id", "kind", "tenant_id", "slug", "name", "permissions", "created_at", "updated_at"}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func roleRow(id int64, kind RoleKind, tenantID interface{}, slug, perms string) []driver.Value {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return []driver.Value{id, string(kind), tenantID, slug, slug, perms, now, now}
}

func TestStore_GetRole(t *testing.T) {
	t.Run("custom role", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewStore(db)
		tenantID := int64(4)

		mock.ExpectQuery("FROM roles WHERE slug = \\$1 AND \\(tenant_id IS NULL OR tenant_id = \\$2\\)").
			WithArgs("support", int64(4)).
			WillReturnRows(sqlmock.NewRows(roleRowColumns).
				AddRow(roleRow(12, RoleKindCustom, int64(4), "support", "{users.view,audit.view}")...))

		role, err := store.GetRole(context.Background(), "support", &tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), role.ID)
		assert.Equal(t, RoleKindCustom, role.Kind)
		require.NotNil(t, role.TenantID)
		assert.Equal(t, int64(4), *role.TenantID)
		assert.Equal(t, []string{"users.view", "audit.view"}, role.Permissions)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("system role with no tenant", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewStore(db)

		mock.ExpectQuery("FROM roles").
			WithArgs("admin", nil).
			WillReturnRows(sqlmock.NewRows(roleRowColumns).
				AddRow(roleRow(1, RoleKindSystem, nil, "admin", "{*}")...))

		role, err := store.GetRole(context.Background(), "admin", nil)
		require.NoError(t, err)
		assert.True(t, role.IsSystem())
		assert.Nil(t, role.TenantID)
		assert.Equal(t, []string{"*"}, role.Permissions)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewStore(db)

		mock.ExpectQuery("FROM roles").WillReturnError(sql.ErrNoRows)

		_, err := store.GetRole(context.Background(), "ghost", nil)
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})
}

func TestStore_ListRoles(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("WHERE tenant_id IS NULL OR tenant_id = \\$1").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(roleRowColumns).
			AddRow(roleRow(1, RoleKindSystem, nil, "admin", "{*}")...).
			AddRow(roleRow(12, RoleKindCustom, int64(4), "support", "{}")...))

	roles, err := store.ListRoles(context.Background(), &tenants.Scope{TenantID: 4})
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "admin", roles[0].Slug)
	assert.Equal(t, []string{}, roles[1].Permissions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRoles_AllTenants(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("WHERE tenant_id IS NULL OR TRUE").
		WillReturnRows(sqlmock.NewRows(roleRowColumns))

	roles, err := store.ListRoles(context.Background(), tenants.AllTenantsScope())
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestStore_CreateRole(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)
	tenantID := int64(4)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("custom", int64(4), "support", "Support", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(20, now, now))

	role := &Role{Kind: RoleKindCustom, TenantID: &tenantID, Slug: "support", Name: "Support", Permissions: []string{"users.view"}}
	require.NoError(t, store.CreateRole(context.Background(), role))
	assert.Equal(t, int64(20), role.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRole(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("UPDATE roles").
		WithArgs("Support", sqlmock.AnyArg(), int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	require.NoError(t, store.UpdateRole(context.Background(), &Role{ID: 20, Name: "Support"}))

	mock.ExpectQuery("UPDATE roles").WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, store.UpdateRole(context.Background(), &Role{ID: 21}), ErrRoleNotFound)
}

func TestStore_DeleteRole(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectExec("DELETE FROM roles WHERE id = \\$1 AND kind = 'custom'").
		WithArgs(int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteRole(context.Background(), 20))

	mock.ExpectExec("DELETE FROM roles").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.DeleteRole(context.Background(), 1), ErrRoleNotFound)

	mock.ExpectExec("DELETE FROM roles").WillReturnError(errors.New("boom"))
	assert.Error(t, store.DeleteRole(context.Background(), 2))
}

func TestStore_CountAssignments(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("FROM users WHERE role_slug = \\$1 AND tenant_id = \\$2").
		WithArgs("support", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.CountAssignments(context.Background(), "support", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
