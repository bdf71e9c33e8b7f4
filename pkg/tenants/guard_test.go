package tenants

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/auth"
)

type fakeTenants map[int64]*Tenant

func (f fakeTenants) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	t, ok := f[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

func int64p(v int64) *int64 { return &v }

func testTenants() fakeTenants {
	suspendedAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return fakeTenants{
		1: {ID: 1, Slug: "alpha", IsActive: true},
		2: {ID: 2, Slug: "beta", IsActive: true},
		3: {ID: 3, Slug: "frozen", IsActive: false, SuspendedAt: &suspendedAt, SuspendedReason: "unpaid"},
	}
}

func TestResolveTenant_RegularUser(t *testing.T) {
	guard := NewGuard(testTenants())
	identity := &auth.Identity{UserID: 10, TenantID: int64p(1), RoleSlug: "sales"}

	t.Run("pinned to token tenant", func(t *testing.T) {
		scope, err := guard.ResolveTenant(context.Background(), identity, nil, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), scope.TenantID)
		assert.False(t, scope.AllTenants)
		assert.False(t, scope.SuperAdmin)
		assert.Equal(t, "alpha", scope.Tenant.Slug)
	})

	t.Run("cross-tenant route still pinned", func(t *testing.T) {
		scope, err := guard.ResolveTenant(context.Background(), identity, nil, true)
		require.NoError(t, err)
		assert.False(t, scope.AllTenants)
		assert.Equal(t, int64(1), scope.TenantID)
	})

	t.Run("matching requested tenant", func(t *testing.T) {
		scope, err := guard.ResolveTenant(context.Background(), identity, int64p(1), false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), scope.TenantID)
	})

	t.Run("foreign requested tenant", func(t *testing.T) {
		_, err := guard.ResolveTenant(context.Background(), identity, int64p(2), false)
		assert.ErrorIs(t, err, ErrTenantForbidden)
	})

	t.Run("token without tenant", func(t *testing.T) {
		_, err := guard.ResolveTenant(context.Background(), &auth.Identity{UserID: 10}, nil, false)
		assert.ErrorIs(t, err, auth.ErrMalformed)
	})

	t.Run("tenant deleted", func(t *testing.T) {
		_, err := guard.ResolveTenant(context.Background(), &auth.Identity{UserID: 10, TenantID: int64p(77)}, nil, false)
		assert.ErrorIs(t, err, auth.ErrInvalidated)
	})

	t.Run("no identity", func(t *testing.T) {
		_, err := guard.ResolveTenant(context.Background(), nil, nil, false)
		assert.ErrorIs(t, err, auth.ErrMalformed)
	})
}

func TestResolveTenant_SuperAdmin(t *testing.T) {
	guard := NewGuard(testTenants())
	identity := &auth.Identity{UserID: 1, SuperAdmin: true}

	t.Run("cross-tenant route spans all tenants", func(t *testing.T) {
		scope, err := guard.ResolveTenant(context.Background(), identity, nil, true)
		require.NoError(t, err)
		assert.True(t, scope.AllTenants)
		assert.True(t, scope.SuperAdmin)
		assert.Nil(t, scope.Tenant)
	})

	t.Run("explicit tenant pins", func(t *testing.T) {
		scope, err := guard.ResolveTenant(context.Background(), identity, int64p(2), false)
		require.NoError(t, err)
		assert.Equal(t, int64(2), scope.TenantID)
		assert.True(t, scope.SuperAdmin)
		assert.False(t, scope.AllTenants)
	})

	t.Run("tenant required elsewhere", func(t *testing.T) {
		_, err := guard.ResolveTenant(context.Background(), identity, nil, false)
		assert.ErrorIs(t, err, ErrTenantRequired)

		var tenantErr *TenantError
		require.True(t, errors.As(err, &tenantErr))
		assert.Equal(t, http.StatusBadRequest, tenantErr.StatusCode())
	})

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := guard.ResolveTenant(context.Background(), identity, int64p(404), false)
		assert.ErrorIs(t, err, ErrTenantNotFound)
	})
}

func TestCheckWritable(t *testing.T) {
	tenants := testTenants()
	active := PinnedScope(tenants[1], false)
	frozen := PinnedScope(tenants[3], false)

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		assert.NoError(t, CheckWritable(frozen, method), method)
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		assert.NoError(t, CheckWritable(active, method), method)

		err := CheckWritable(frozen, method)
		require.Error(t, err, method)

		var tenantErr *TenantError
		require.True(t, errors.As(err, &tenantErr))
		assert.Equal(t, "tenant_suspended", tenantErr.ErrorCode())
		assert.Equal(t, http.StatusForbidden, tenantErr.StatusCode())
		assert.Equal(t, "unpaid", tenantErr.Details()["reason"])
	}

	assert.NoError(t, CheckWritable(AllTenantsScope(), http.MethodPost))
	assert.NoError(t, CheckWritable(nil, http.MethodPost))
}

// Rows owned by another tenant never pass a pinned scope, even when the
// visible data looks identical.
func TestScope_CrossTenantFiltering(t *testing.T) {
	type row struct {
		tenantID int64
		name     string
	}
	rows := []row{
		{1, "Globex"}, {1, "Initech"},
		{2, "Globex"}, {2, "Initech"}, {2, "Umbrella"},
	}

	for _, tenantID := range []int64{1, 2} {
		scope := &Scope{TenantID: tenantID}
		var visible []row
		for _, r := range rows {
			if scope.Allows(r.tenantID) {
				visible = append(visible, r)
			}
		}
		require.NotEmpty(t, visible)
		for _, r := range visible {
			assert.Equal(t, tenantID, r.tenantID)
		}
	}

	assert.True(t, AllTenantsScope().Allows(1))
	assert.True(t, AllTenantsScope().Allows(2))
}

func TestScope_Filter(t *testing.T) {
	clause, args := (&Scope{TenantID: 9}).Filter("u.tenant_id", []interface{}{"x@example.com"})
	assert.Equal(t, "u.tenant_id = $2", clause)
	assert.Equal(t, []interface{}{"x@example.com", int64(9)}, args)

	clause, args = AllTenantsScope().Filter("u.tenant_id", nil)
	assert.Equal(t, "TRUE", clause)
	assert.Empty(t, args)
}

func TestScope_Require(t *testing.T) {
	id, err := (&Scope{TenantID: 4}).Require()
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	_, err = AllTenantsScope().Require()
	assert.ErrorIs(t, err, ErrTenantRequired)
}

func TestTenant_Location(t *testing.T) {
	assert.Equal(t, time.UTC, (&Tenant{}).Location())
	assert.Equal(t, time.UTC, (&Tenant{BillingTimezone: "Not/AZone"}).Location())
	assert.Equal(t, "America/Sao_Paulo", (&Tenant{BillingTimezone: "America/Sao_Paulo"}).Location().String())
}

func TestScopeContext(t *testing.T) {
	assert.Nil(t, ScopeFromContext(context.Background()))

	scope := &Scope{TenantID: 3}
	ctx := WithScope(context.Background(), scope)
	assert.Same(t, scope, ScopeFromContext(ctx))
}
