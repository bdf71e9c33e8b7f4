package rbac

import (
	"context"
	"sync"

	"github.com/platinummonkey/backoffice/pkg/tenants"
)

// memoryStore is an in-memory RoleStore for service and resolver tests
type memoryStore struct {
	mu          sync.Mutex
	roles       []*Role
	nextID      int64
	assignments map[string]int64
	getCalls    int
	createErr   error
}

func newMemoryStore(roles ...*Role) *memoryStore {
	return &memoryStore{roles: roles, nextID: 100, assignments: map[string]int64{}}
}

func systemRole(id int64, slug string, perms ...string) *Role {
	return &Role{ID: id, Kind: RoleKindSystem, Slug: slug, Name: slug, Permissions: perms}
}

func customRole(id, tenantID int64, slug string, perms ...string) *Role {
	return &Role{ID: id, Kind: RoleKindCustom, TenantID: &tenantID, Slug: slug, Name: slug, Permissions: perms}
}

func (s *memoryStore) GetRole(ctx context.Context, slug string, tenantID *int64) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	var found *Role
	for _, r := range s.roles {
		if r.Slug != slug {
			continue
		}
		if r.TenantID == nil {
			found = r
			break
		}
		if tenantID != nil && *r.TenantID == *tenantID {
			found = r
		}
	}
	if found == nil {
		return nil, ErrRoleNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *memoryStore) ListRoles(ctx context.Context, scope *tenants.Scope) ([]*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Role
	for _, r := range s.roles {
		if r.TenantID == nil || scope.Allows(*r.TenantID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) CreateRole(ctx context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	role.ID = s.nextID
	cp := *role
	s.roles = append(s.roles, &cp)
	return nil
}

func (s *memoryStore) UpdateRole(ctx context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.roles {
		if r.ID == role.ID {
			cp := *role
			s.roles[i] = &cp
			return nil
		}
	}
	return ErrRoleNotFound
}

func (s *memoryStore) DeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.roles {
		if r.ID == id && !r.IsSystem() {
			s.roles = append(s.roles[:i], s.roles[i+1:]...)
			return nil
		}
	}
	return ErrRoleNotFound
}

func (s *memoryStore) CountAssignments(ctx context.Context, slug string, tenantID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignments[slug], nil
}
