package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/billing"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

const emailTakenMessage = "is already registered"

// TrialStarter opens the first subscription of a new tenant
type TrialStarter interface {
	StartTrial(ctx context.Context, q postgres.Querier, tenantID int64, now time.Time) (*billing.Subscription, error)
}

// Service implements registration, login and account management
type Service struct {
	db     *sql.DB
	store  *Store
	tokens *auth.TokenService
	hasher *auth.PasswordHasher
	trials TrialStarter
	now    func() time.Time
}

// NewService creates a user service
func NewService(db *sql.DB, store *Store, tokens *auth.TokenService, hasher *auth.PasswordHasher, trials TrialStarter) *Service {
	return &Service{
		db:     db,
		store:  store,
		tokens: tokens,
		hasher: hasher,
		trials: trials,
		now:    time.Now,
	}
}

// Register creates a tenant, its first admin and a trial subscription in
// one transaction, then issues tokens for the new admin
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(input.Email)

	errs := validation.Errors{}
	if errs.Required("tenant_name", input.TenantName) {
		errs.MaxLength("tenant_name", input.TenantName, 200)
	}
	if errs.Required("name", input.Name) {
		errs.MaxLength("name", input.Name, 200)
	}
	errs.Email("email", email)
	errs.Password("password", input.Password)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	var result AuthResult
	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tenant, err := tenants.InsertTenant(ctx, tx, input.TenantName)
		if err != nil {
			return err
		}
		user, err := InsertUser(ctx, tx, NewUser{
			TenantID:     &tenant.ID,
			RoleSlug:     rbac.RoleAdmin,
			Email:        email,
			Name:         input.Name,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		if _, err := s.trials.StartTrial(ctx, tx, tenant.ID, s.now()); err != nil {
			return fmt.Errorf("failed to start trial: %w", err)
		}
		result.User = user
		result.Tenant = tenant
		return nil
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil, validation.Errors{"email": emailTakenMessage}
	}
	if err != nil {
		return nil, err
	}

	result.Tokens, err = s.tokens.Issue(ctx, result.User.Principal())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(input.Email)

	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.hasher.CompareDummy(input.Password)
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, auth.ErrUserNotActive
	}

	tokens, err := s.tokens.Issue(ctx, user.Principal())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair
func (s *Service) Refresh(ctx context.Context, input RefreshInput) (*auth.TokenPair, error) {
	return s.tokens.Refresh(ctx, input.RefreshToken)
}

// ChangePassword replaces the caller's password. The credential version is
// bumped with the hash, so every earlier refresh token stops working; the
// returned pair carries the new version.
func (s *Service) ChangePassword(ctx context.Context, identity *auth.Identity, input ChangePasswordInput) (*auth.TokenPair, error) {
	if identity == nil {
		return nil, auth.ErrMalformed
	}

	errs := validation.Errors{}
	errs.Required("current_password", input.CurrentPassword)
	errs.Password("new_password", input.NewPassword)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	user, err := s.store.GetByID(ctx, identity.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrInvalidated
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, input.CurrentPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongCurrentPassword
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return nil, err
	}
	user, err = s.store.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return nil, err
	}
	return s.tokens.Issue(ctx, user.Principal())
}

// Me returns the caller's own record
func (s *Service) Me(ctx context.Context, identity *auth.Identity) (*User, error) {
	if identity == nil {
		return nil, auth.ErrMalformed
	}
	user, err := s.store.GetByID(ctx, identity.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrInvalidated
	}
	return user, err
}

// List returns the users visible in scope
func (s *Service) List(ctx context.Context, scope *tenants.Scope) ([]*User, error) {
	users, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

// Suspend deactivates a user of the scope's tenant and revokes its refresh
// tokens
func (s *Service) Suspend(ctx context.Context, scope *tenants.Scope, actor *auth.Identity, userID int64, input SuspendInput) (*User, error) {
	if actor != nil && actor.UserID == userID {
		return nil, &rbac.PolicyError{Kind: rbac.KindForbidden, Message: "cannot suspend yourself"}
	}

	errs := validation.Errors{}
	errs.MaxLength("reason", input.Reason, 500)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	return s.store.Suspend(ctx, scope, userID, input.Reason)
}

// Activate reactivates a suspended user of the scope's tenant
func (s *Service) Activate(ctx context.Context, scope *tenants.Scope, actor *auth.Identity, userID int64) (*User, error) {
	if actor != nil && actor.UserID == userID {
		return nil, &rbac.PolicyError{Kind: rbac.KindForbidden, Message: "cannot activate yourself"}
	}
	return s.store.Activate(ctx, scope, userID)
}
