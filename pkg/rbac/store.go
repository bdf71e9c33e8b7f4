package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

const roleColumns = `id, kind, tenant_id, slug, name, permissions, created_at, updated_at`

// RoleStore is the persistence the role service needs
type RoleStore interface {
	RoleReader
	ListRoles(ctx context.Context, scope *tenants.Scope) ([]*Role, error)
	CreateRole(ctx context.Context, role *Role) error
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, id int64) error
	CountAssignments(ctx context.Context, slug string, tenantID int64) (int64, error)
}

// Store handles role persistence in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (*Role, error) {
	role := &Role{}
	var tenantID sql.NullInt64
	if err := row.Scan(
		&role.ID, &role.Kind, &tenantID, &role.Slug, &role.Name,
		pq.Array(&role.Permissions), &role.CreatedAt, &role.UpdatedAt,
	); err != nil {
		return nil, err
	}
	role.TenantID = postgres.Int64Ptr(tenantID)
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	return role, nil
}

// GetRole retrieves the role with slug visible to tenantID: a system role or
// a custom role of that tenant.
func (s *Store) GetRole(ctx context.Context, slug string, tenantID *int64) (*Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE slug = $1 AND (tenant_id IS NULL OR tenant_id = $2)
		ORDER BY tenant_id NULLS FIRST
		LIMIT 1
	`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, slug, postgres.NullInt64(tenantID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles lists system roles plus the custom roles visible in scope
func (s *Store) ListRoles(ctx context.Context, scope *tenants.Scope) ([]*Role, error) {
	where, args := scope.Filter("tenant_id", nil)
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE tenant_id IS NULL OR ` + where + `
		ORDER BY kind DESC, slug
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// CreateRole inserts a custom role and sets its ID and timestamps
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (kind, tenant_id, slug, name, permissions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		role.Kind, postgres.NullInt64(role.TenantID), role.Slug, role.Name, pq.Array(role.Permissions),
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// UpdateRole stores a role's name and permissions
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	query := `
		UPDATE roles
		SET name = $1, permissions = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query, role.Name, pq.Array(role.Permissions), role.ID).Scan(&role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRoleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// DeleteRole deletes a custom role. System rows are never matched.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1 AND kind = 'custom'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// CountAssignments counts users and pending invitations of tenantID that
// reference slug
func (s *Store) CountAssignments(ctx context.Context, slug string, tenantID int64) (int64, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role_slug = $1 AND tenant_id = $2) +
			(SELECT COUNT(*) FROM user_invitations WHERE role_slug = $1 AND tenant_id = $2 AND accepted_at IS NULL)
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, slug, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count role assignments: %w", err)
	}
	return count, nil
}
