package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

var userRowColumns = []string{
	"id", "tenant_id", "role_slug", "email", "name", "password_hash", "is_super_admin", "is_active",
	"suspended_at", "suspended_reason", "credential_version", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type userFixture struct {
	id       int64
	tenantID interface{}
	role     string
	email    string
	hash     string
	active   bool
	version  int64
}

func (f userFixture) row() []driver.Value {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	superAdmin := f.tenantID == nil
	return []driver.Value{
		f.id, f.tenantID, f.role, f.email, "User", f.hash, superAdmin, f.active,
		nil, "", f.version, now, now,
	}
}

func TestStore_List_ScopedToTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("FROM users WHERE tenant_id = \\$1 ORDER BY").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(userFixture{id: 1, tenantID: int64(4), role: "admin", email: "a@x.io", active: true}.row()...).
			AddRow(userFixture{id: 2, tenantID: int64(4), role: "viewer", email: "b@x.io", active: true}.row()...))

	users, err := store.List(context.Background(), &tenants.Scope{TenantID: 4})
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		require.NotNil(t, u.TenantID)
		assert.Equal(t, int64(4), *u.TenantID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List_AllTenants(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("FROM users WHERE TRUE").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(userFixture{id: 1, tenantID: nil, role: "admin", email: "root@x.io", active: true}.row()...))

	users, err := store.List(context.Background(), tenants.AllTenantsScope())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Nil(t, users[0].TenantID)
	assert.True(t, users[0].IsSuperAdmin)
}

func TestStore_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1 AND tenant_id = \\$2").
		WithArgs(int64(7), int64(4)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), &tenants.Scope{TenantID: 4}, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertUser(t *testing.T) {
	ctx := context.Background()
	tenantID := int64(4)

	t.Run("created", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("INSERT INTO users (.+) ON CONFLICT ON CONSTRAINT users_email_key DO NOTHING").
			WithArgs(int64(4), "viewer", "new@x.io", "New", "hash", false).
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(userFixture{id: 11, tenantID: int64(4), role: "viewer", email: "new@x.io", active: true}.row()...))

		u, err := InsertUser(ctx, db, NewUser{TenantID: &tenantID, RoleSlug: "viewer", Email: "new@x.io", Name: "New", PasswordHash: "hash"})
		require.NoError(t, err)
		assert.Equal(t, int64(11), u.ID)
	})

	t.Run("email taken", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("INSERT INTO users").WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := InsertUser(ctx, db, NewUser{TenantID: &tenantID, RoleSlug: "viewer", Email: "dup@x.io"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestEmailExists(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("a@x.io").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := EmailExists(context.Background(), db, "a@x.io")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_SuspendActivate(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)
	scope := &tenants.Scope{TenantID: 4}

	mock.ExpectQuery("UPDATE users SET is_active = FALSE(.+)credential_version = credential_version \\+ 1(.+)WHERE id = \\$1 AND tenant_id = \\$3").
		WithArgs(int64(7), "left the company", int64(4)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(userFixture{id: 7, tenantID: int64(4), role: "viewer", active: false, version: 3}.row()...))

	u, err := store.Suspend(context.Background(), scope, 7, "left the company")
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	assert.Equal(t, int64(3), u.CredentialVersion)

	mock.ExpectQuery("UPDATE users SET is_active = TRUE(.+)WHERE id = \\$1 AND tenant_id = \\$2").
		WithArgs(int64(8), int64(4)).
		WillReturnError(sql.ErrNoRows)

	_, err = store.Activate(context.Background(), scope, 8)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CredentialStore(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(userFixture{id: 7, tenantID: int64(4), role: "sales", active: true, version: 2}.row()...))

	p, err := store.LookupPrincipal(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "sales", p.RoleSlug)
	assert.Equal(t, int64(2), p.CredentialVersion)
	assert.True(t, p.Active)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs(int64(8)).WillReturnError(sql.ErrNoRows)
	_, err = store.LookupPrincipal(ctx, 8)
	assert.ErrorIs(t, err, auth.ErrPrincipalNotFound)

	mock.ExpectQuery("UPDATE users SET credential_version = credential_version \\+ 1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credential_version"}).AddRow(3))
	version, err := store.BumpCredentialVersion(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	mock.ExpectQuery("UPDATE users SET credential_version").WillReturnError(sql.ErrNoRows)
	_, err = store.BumpCredentialVersion(ctx, 9)
	assert.ErrorIs(t, err, auth.ErrPrincipalNotFound)
}
