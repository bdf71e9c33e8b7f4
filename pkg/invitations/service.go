package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/users"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

const invitationColumns = `i.id, i.tenant_id, i.email, i.role_slug, i.token_hash, i.invited_by,
	i.expires_at, i.accepted_at, i.created_at, i.updated_at`

// DefaultTTL is how long an invitation stays redeemable
const DefaultTTL = 7 * 24 * time.Hour

// TokenIssuer issues the first token pair of an accepted invitee
type TokenIssuer interface {
	Issue(ctx context.Context, p *auth.Principal) (*auth.TokenPair, error)
}

// Config configures a Service
type Config struct {
	TTL           time.Duration
	AcceptBaseURL string
}

// Service implements the invitation lifecycle
type Service struct {
	db       *sql.DB
	roles    rbac.RoleReader
	resolver *rbac.Resolver
	hasher   *auth.PasswordHasher
	issuer   TokenIssuer
	notifier Notifier
	tokens   *auth.TokenGenerator
	cfg      Config
	now      func() time.Time
}

// NewService creates an invitation service. A nil notifier discards links.
func NewService(db *sql.DB, roles rbac.RoleReader, resolver *rbac.Resolver, hasher *auth.PasswordHasher,
	issuer TokenIssuer, notifier Notifier, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Service{
		db:       db,
		roles:    roles,
		resolver: resolver,
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
		tokens:   auth.NewTokenGenerator(auth.InvitationTokenPrefix),
		cfg:      cfg,
		now:      time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvitationInto(dest []interface{}, inv *Invitation, acceptedAt *sql.NullTime) []interface{} {
	return append(dest,
		&inv.ID, &inv.TenantID, &inv.Email, &inv.RoleSlug, &inv.TokenHash, &inv.InvitedBy,
		&inv.ExpiresAt, acceptedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
}

func scanInvitation(row rowScanner) (*Invitation, error) {
	inv := &Invitation{}
	var acceptedAt sql.NullTime
	if err := row.Scan(scanInvitationInto(nil, inv, &acceptedAt)...); err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return inv, nil
}

// AcceptURL builds the link an invitee follows
func (s *Service) AcceptURL(token string) string {
	base := strings.TrimRight(s.cfg.AcceptBaseURL, "/")
	return base + "/" + url.PathEscape(token)
}

// Create invites email into the scope's tenant with a role. A pending
// invitation for the same email is refreshed in place with a new token.
func (s *Service) Create(ctx context.Context, scope *tenants.Scope, inviter *auth.Identity, input CreateInput) (*Issued, error) {
	if inviter == nil {
		return nil, auth.ErrMalformed
	}
	tenantID, err := scope.Require()
	if err != nil {
		return nil, err
	}

	email := validation.NormalizeEmail(input.Email)
	errs := validation.Errors{}
	errs.Email("email", email)
	errs.Required("role", input.RoleSlug)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	role, err := s.roles.GetRole(ctx, input.RoleSlug, &tenantID)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return nil, validation.Errors{"role": "unknown role"}
	}
	if err != nil {
		return nil, err
	}
	if !role.VisibleTo(tenantID) {
		return nil, validation.Errors{"role": "unknown role"}
	}

	canGrant, err := s.resolver.HasAll(ctx, inviter, role.Permissions...)
	if err != nil {
		return nil, err
	}
	if !canGrant {
		return nil, &rbac.PolicyError{Kind: rbac.KindForbidden, Message: "cannot invite with a role that has permissions you do not hold"}
	}

	exists, err := users.EmailExists(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, validation.Errors{"email": "already has an account"}
	}

	token, hash, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO user_invitations AS i (tenant_id, email, role_slug, token_hash, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, email) WHERE accepted_at IS NULL DO UPDATE
		SET role_slug = EXCLUDED.role_slug,
		    token_hash = EXCLUDED.token_hash,
		    invited_by = EXCLUDED.invited_by,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
		RETURNING ` + invitationColumns

	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query,
		tenantID, email, role.Slug, hash, inviter.UserID, s.now().Add(s.cfg.TTL),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	return s.issue(ctx, inv, token), nil
}

// Resend rotates the token and expiry of a pending invitation. The previous
// link stops working.
func (s *Service) Resend(ctx context.Context, scope *tenants.Scope, id int64) (*Issued, error) {
	token, hash, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, err
	}

	where, args := scope.Filter("i.tenant_id", []interface{}{hash, s.now().Add(s.cfg.TTL), id})
	query := `
		UPDATE user_invitations AS i
		SET token_hash = $1, expires_at = $2, updated_at = NOW()
		WHERE i.id = $3 AND i.accepted_at IS NULL AND ` + where + `
		RETURNING ` + invitationColumns

	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resend invitation: %w", err)
	}

	return s.issue(ctx, inv, token), nil
}

func (s *Service) issue(ctx context.Context, inv *Invitation, token string) *Issued {
	inv.Status = inv.StatusAt(s.now())
	issued := &Issued{Invitation: inv, Token: token, AcceptURL: s.AcceptURL(token)}
	if s.notifier != nil {
		if err := s.notifier.InvitationIssued(ctx, inv, issued.AcceptURL); err != nil {
			observability.FromContext(ctx).WithError(err).
				WithField("invitation_id", inv.ID).
				Warn("failed to deliver invitation")
		}
	}
	return issued
}

// GetByToken returns the public summary of a redeemable invitation.
// Consumed and expired invitations are reported as not found.
func (s *Service) GetByToken(ctx context.Context, token string) (*Summary, error) {
	if s.tokens.ValidateTokenFormat(token) != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT ` + invitationColumns + `, t.name
		FROM user_invitations i
		JOIN tenants t ON t.id = i.tenant_id
		WHERE i.token_hash = $1
	`
	inv := &Invitation{}
	var acceptedAt sql.NullTime
	var tenantName string
	dest := append(scanInvitationInto(nil, inv, &acceptedAt), &tenantName)

	err := s.db.QueryRowContext(ctx, query, auth.HashToken(token)).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if acceptedAt.Valid || s.now().After(inv.ExpiresAt) {
		return nil, ErrNotFound
	}

	return &Summary{
		Email:      inv.Email,
		RoleSlug:   inv.RoleSlug,
		TenantName: tenantName,
		ExpiresAt:  inv.ExpiresAt,
	}, nil
}

// Accept redeems token: it creates the invitee's account with the invited
// role and returns a fresh token pair. The invitation row is locked for
// the whole transaction, so concurrent accepts of one token serialize and
// all but the first see ErrAlreadyConsumed.
func (s *Service) Accept(ctx context.Context, token string, input AcceptInput) (*users.AuthResult, error) {
	if s.tokens.ValidateTokenFormat(token) != nil {
		return nil, ErrNotFound
	}

	errs := validation.Errors{}
	if errs.Required("name", input.Name) {
		errs.MaxLength("name", input.Name, 200)
	}
	errs.Password("password", input.Password)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	var user *users.User
	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		query := `
			SELECT ` + invitationColumns + `, t.is_active, t.suspended_at, t.suspended_reason
			FROM user_invitations i
			JOIN tenants t ON t.id = i.tenant_id
			WHERE i.token_hash = $1
			FOR UPDATE OF i
		`
		inv := &Invitation{}
		var acceptedAt, suspendedAt sql.NullTime
		tenant := &tenants.Tenant{}
		dest := append(scanInvitationInto(nil, inv, &acceptedAt), &tenant.IsActive, &suspendedAt, &tenant.SuspendedReason)

		err := tx.QueryRowContext(ctx, query, auth.HashToken(token)).Scan(dest...)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock invitation: %w", err)
		}
		if acceptedAt.Valid {
			return ErrAlreadyConsumed
		}
		if s.now().After(inv.ExpiresAt) {
			return ErrExpired
		}

		tenant.ID = inv.TenantID
		if suspendedAt.Valid {
			tenant.SuspendedAt = &suspendedAt.Time
		}
		if tenant.Suspended() {
			return tenants.SuspendedError(tenant)
		}

		user, err = users.InsertUser(ctx, tx, users.NewUser{
			TenantID:     &inv.TenantID,
			RoleSlug:     inv.RoleSlug,
			Email:        inv.Email,
			Name:         input.Name,
			PasswordHash: passwordHash,
		})
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE user_invitations SET accepted_at = $1, updated_at = NOW() WHERE id = $2`,
			s.now(), inv.ID,
		); err != nil {
			return fmt.Errorf("failed to consume invitation: %w", err)
		}
		return nil
	})
	if errors.Is(err, users.ErrEmailTaken) {
		return nil, validation.Errors{"email": "already has an account"}
	}
	if err != nil {
		return nil, err
	}

	tokens, err := s.issuer.Issue(ctx, user.Principal())
	if err != nil {
		return nil, err
	}
	return &users.AuthResult{User: user, Tokens: tokens}, nil
}

// Delete removes a pending invitation. Accepted invitations are kept and
// reported as not found.
func (s *Service) Delete(ctx context.Context, scope *tenants.Scope, id int64) (*Invitation, error) {
	where, args := scope.Filter("i.tenant_id", []interface{}{id})
	query := `
		DELETE FROM user_invitations AS i
		WHERE i.id = $1 AND i.accepted_at IS NULL AND ` + where + `
		RETURNING ` + invitationColumns

	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete invitation: %w", err)
	}
	return inv, nil
}

// List returns the pending and expired invitations visible in scope
func (s *Service) List(ctx context.Context, scope *tenants.Scope) ([]*Invitation, error) {
	where, args := scope.Filter("i.tenant_id", nil)
	query := `
		SELECT ` + invitationColumns + `
		FROM user_invitations i
		WHERE i.accepted_at IS NULL AND ` + where + `
		ORDER BY i.created_at DESC, i.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	now := s.now()
	invitations := []*Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		inv.Status = inv.StatusAt(now)
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// CleanupExpired deletes unaccepted invitations that expired more than
// olderThan ago and returns how many were removed
func (s *Service) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_invitations WHERE accepted_at IS NULL AND expires_at < $1`,
		s.now().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
