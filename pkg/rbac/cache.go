package rbac

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/backoffice/pkg/tenants"
)

// CachedRoleStore keeps recently read roles in a bounded in-process LRU.
// Every write through it purges the whole cache; entries also expire after
// ttl so writes made by other processes are picked up.
type CachedRoleStore struct {
	next  RoleStore
	cache *expirable.LRU[string, *Role]
}

// NewCachedRoleStore wraps next with an LRU of size entries
func NewCachedRoleStore(next RoleStore, size int, ttl time.Duration) *CachedRoleStore {
	return &CachedRoleStore{
		next:  next,
		cache: expirable.NewLRU[string, *Role](size, nil, ttl),
	}
}

func cacheKey(slug string, tenantID *int64) string {
	if tenantID == nil {
		return slug + "|-"
	}
	return slug + "|" + strconv.FormatInt(*tenantID, 10)
}

// GetRole implements RoleReader
func (c *CachedRoleStore) GetRole(ctx context.Context, slug string, tenantID *int64) (*Role, error) {
	key := cacheKey(slug, tenantID)
	if role, ok := c.cache.Get(key); ok {
		return role, nil
	}

	role, err := c.next.GetRole(ctx, slug, tenantID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, role)
	return role, nil
}

// ListRoles is never cached
func (c *CachedRoleStore) ListRoles(ctx context.Context, scope *tenants.Scope) ([]*Role, error) {
	return c.next.ListRoles(ctx, scope)
}

// CreateRole implements RoleStore
func (c *CachedRoleStore) CreateRole(ctx context.Context, role *Role) error {
	defer c.cache.Purge()
	return c.next.CreateRole(ctx, role)
}

// UpdateRole implements RoleStore
func (c *CachedRoleStore) UpdateRole(ctx context.Context, role *Role) error {
	defer c.cache.Purge()
	return c.next.UpdateRole(ctx, role)
}

// DeleteRole implements RoleStore
func (c *CachedRoleStore) DeleteRole(ctx context.Context, id int64) error {
	defer c.cache.Purge()
	return c.next.DeleteRole(ctx, id)
}

// CountAssignments implements RoleStore
func (c *CachedRoleStore) CountAssignments(ctx context.Context, slug string, tenantID int64) (int64, error) {
	return c.next.CountAssignments(ctx, slug, tenantID)
}

// Len returns the number of cached roles
func (c *CachedRoleStore) Len() int {
	return c.cache.Len()
}
