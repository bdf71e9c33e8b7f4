package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

const userColumns = `id, tenant_id, role_slug, email, name, password_hash, is_super_admin, is_active,
	suspended_at, suspended_reason, credential_version, created_at, updated_at`

// Store handles user persistence in PostgreSQL. It implements
// auth.CredentialStore.
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ auth.CredentialStore = (*Store)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var tenantID sql.NullInt64
	var suspendedAt sql.NullTime
	if err := row.Scan(
		&u.ID, &tenantID, &u.RoleSlug, &u.Email, &u.Name, &u.PasswordHash,
		&u.IsSuperAdmin, &u.IsActive, &suspendedAt, &u.SuspendedReason,
		&u.CredentialVersion, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.TenantID = postgres.Int64Ptr(tenantID)
	if suspendedAt.Valid {
		u.SuspendedAt = &suspendedAt.Time
	}
	return u, nil
}

func (s *Store) getOne(ctx context.Context, query string, args ...interface{}) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user regardless of tenant. Only for the user's own
// record or authentication.
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by normalized email
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Get retrieves a user visible in scope
func (s *Store) Get(ctx context.Context, scope *tenants.Scope, id int64) (*User, error) {
	where, args := scope.Filter("tenant_id", []interface{}{id})
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND `+where, args...)
}

// List lists the users visible in scope
func (s *Store) List(ctx context.Context, scope *tenants.Scope) ([]*User, error) {
	where, args := scope.Filter("tenant_id", nil)
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// InsertUser creates a user inside q. A registered email yields
// ErrEmailTaken without aborting a surrounding transaction.
func InsertUser(ctx context.Context, q postgres.Querier, nu NewUser) (*User, error) {
	query := `
		INSERT INTO users (tenant_id, role_slug, email, name, password_hash, is_super_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT users_email_key DO NOTHING
		RETURNING ` + userColumns

	u, err := scanUser(q.QueryRowContext(ctx, query,
		postgres.NullInt64(nu.TenantID), nu.RoleSlug, nu.Email, nu.Name, nu.PasswordHash, nu.SuperAdmin,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// EmailExists reports whether email is registered
func EmailExists(ctx context.Context, q postgres.Querier, email string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// UpdatePassword stores a new hash and bumps the credential version in the
// same statement
func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) (*User, error) {
	query := `
		UPDATE users
		SET password_hash = $1, credential_version = credential_version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + userColumns
	return s.getOne(ctx, query, hash, id)
}

// Suspend deactivates a user in scope and bumps its credential version
func (s *Store) Suspend(ctx context.Context, scope *tenants.Scope, id int64, reason string) (*User, error) {
	where, args := scope.Filter("tenant_id", []interface{}{id, reason})
	query := `
		UPDATE users
		SET is_active = FALSE, suspended_at = NOW(), suspended_reason = $2,
		    credential_version = credential_version + 1, updated_at = NOW()
		WHERE id = $1 AND ` + where + `
		RETURNING ` + userColumns
	return s.getOne(ctx, query, args...)
}

// Activate reactivates a user in scope
func (s *Store) Activate(ctx context.Context, scope *tenants.Scope, id int64) (*User, error) {
	where, args := scope.Filter("tenant_id", []interface{}{id})
	query := `
		UPDATE users
		SET is_active = TRUE, suspended_at = NULL, suspended_reason = '', updated_at = NOW()
		WHERE id = $1 AND ` + where + `
		RETURNING ` + userColumns
	return s.getOne(ctx, query, args...)
}

// LookupPrincipal implements auth.UserLookup
func (s *Store) LookupPrincipal(ctx context.Context, userID int64) (*auth.Principal, error) {
	u, err := s.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	return u.Principal(), nil
}

// BumpCredentialVersion implements auth.CredentialStore
func (s *Store) BumpCredentialVersion(ctx context.Context, userID int64) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET credential_version = credential_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING credential_version
	`, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, auth.ErrPrincipalNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to bump credential version: %w", err)
	}
	return version, nil
}
