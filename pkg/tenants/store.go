package tenants

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
)

const tenantColumns = `id, slug, name, is_active, suspended_at, suspended_reason, billing_timezone, created_at, updated_at`

// slugAttempts bounds the random-suffix retries when a slug is taken
const slugAttempts = 5

// Store reads and updates tenants in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new tenant store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	t := &Tenant{}
	var suspendedAt sql.NullTime
	if err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.IsActive, &suspendedAt, &t.SuspendedReason,
		&t.BillingTimezone, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if suspendedAt.Valid {
		t.SuspendedAt = &suspendedAt.Time
	}
	return t, nil
}

// GetTenant retrieves a tenant by ID
func (s *Store) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	t, err := scanTenant(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// ListTenants lists the tenants visible in scope
func (s *Store) ListTenants(ctx context.Context, scope *Scope) ([]*Tenant, error) {
	where, args := scope.Filter("id", nil)
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// Suspend freezes writes for a tenant
func (s *Store) Suspend(ctx context.Context, id int64, reason string) (*Tenant, error) {
	query := `
		UPDATE tenants
		SET is_active = FALSE, suspended_at = NOW(), suspended_reason = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + tenantColumns
	t, err := scanTenant(s.db.QueryRowContext(ctx, query, id, reason))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to suspend tenant: %w", err)
	}
	return t, nil
}

// Activate lifts a suspension
func (s *Store) Activate(ctx context.Context, id int64) (*Tenant, error) {
	query := `
		UPDATE tenants
		SET is_active = TRUE, suspended_at = NULL, suspended_reason = '', updated_at = NOW()
		WHERE id = $1
		RETURNING ` + tenantColumns
	t, err := scanTenant(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate tenant: %w", err)
	}
	return t, nil
}

// InsertTenant creates a tenant named name inside q. A taken slug gets a
// random suffix; ON CONFLICT keeps a surrounding transaction usable.
func InsertTenant(ctx context.Context, q postgres.Querier, name string) (*Tenant, error) {
	base := generateSlug(name)
	if base == "" {
		base = "tenant"
	}

	query := `
		INSERT INTO tenants (slug, name)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO NOTHING
		RETURNING ` + tenantColumns

	slug := base
	for attempt := 0; attempt < slugAttempts; attempt++ {
		t, err := scanTenant(q.QueryRowContext(ctx, query, slug, name))
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to create tenant: %w", err)
		}

		suffix, err := randomSuffix()
		if err != nil {
			return nil, fmt.Errorf("failed to generate slug suffix: %w", err)
		}
		slug = base + "-" + suffix
	}

	return nil, fmt.Errorf("failed to create tenant: no free slug for %q", base)
}

// generateSlug derives a URL-safe slug from a tenant name
func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

func randomSuffix() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
