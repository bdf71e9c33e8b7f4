package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedRoleStore(t *testing.T) {
	inner := newMemoryStore(systemRole(1, RoleViewer, PermUsersView), customRole(10, 3, "ops", PermUsersView))
	cache := NewCachedRoleStore(inner, 16, time.Minute)
	ctx := context.Background()
	tenantID := int64(3)

	for i := 0; i < 3; i++ {
		_, err := cache.GetRole(ctx, "ops", &tenantID)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.getCalls)
	assert.Equal(t, 1, cache.Len())

	_, err := cache.GetRole(ctx, RoleViewer, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	_, err = cache.GetRole(ctx, "ghost", nil)
	assert.ErrorIs(t, err, ErrRoleNotFound)
	assert.Equal(t, 2, cache.Len())

	role, err := cache.GetRole(ctx, "ops", &tenantID)
	require.NoError(t, err)
	role.Permissions = []string{PermUsersManage}
	require.NoError(t, cache.UpdateRole(ctx, role))
	assert.Zero(t, cache.Len())

	role, err = cache.GetRole(ctx, "ops", &tenantID)
	require.NoError(t, err)
	assert.Equal(t, []string{PermUsersManage}, role.Permissions)
}

func TestCachedRoleStore_Expiry(t *testing.T) {
	inner := newMemoryStore(systemRole(1, RoleViewer, PermUsersView))
	cache := NewCachedRoleStore(inner, 16, 20*time.Millisecond)
	ctx := context.Background()

	_, err := cache.GetRole(ctx, RoleViewer, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return cache.Len() == 0 }, time.Second, 10*time.Millisecond)

	_, err = cache.GetRole(ctx, RoleViewer, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.getCalls)
}

func TestCachedRoleStore_KeysByTenant(t *testing.T) {
	assert.Equal(t, "ops|-", cacheKey("ops", nil))
	id := int64(42)
	assert.Equal(t, "ops|42", cacheKey("ops", &id))
}
