//go:build integration

package invitations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/users"
)

type lockedIssuer struct {
	mu    sync.Mutex
	count int
}

func (l *lockedIssuer) Issue(ctx context.Context, p *auth.Principal) (*auth.TokenPair, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	return &auth.TokenPair{AccessToken: "access"}, nil
}

func TestService_ConcurrentAccept(t *testing.T) {
	db := postgres.SetupTestDB(t)
	ctx := context.Background()

	tenant, err := tenants.InsertTenant(ctx, db, "Acme Corp")
	require.NoError(t, err)
	hasher := auth.NewPasswordHasher(4)
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)
	owner, err := users.InsertUser(ctx, db, users.NewUser{
		TenantID:     &tenant.ID,
		RoleSlug:     rbac.RoleAdmin,
		Email:        "owner@acme.io",
		Name:         "Owner",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	roles := rbac.NewStore(db)
	issuer := &lockedIssuer{}
	svc := NewService(db, roles, rbac.NewResolver(roles), hasher, issuer, nil, Config{AcceptBaseURL: "http://localhost/invite"})

	inviter := &auth.Identity{UserID: owner.ID, TenantID: &tenant.ID, RoleSlug: rbac.RoleAdmin}
	issued, err := svc.Create(ctx, &tenants.Scope{TenantID: tenant.ID}, inviter, CreateInput{Email: "new@acme.io", RoleSlug: rbac.RoleSales})
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Accept(ctx, issued.Token, AcceptInput{Name: "New Person", Password: "correct-horse"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrAlreadyConsumed), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, issuer.count)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, "new@acme.io").Scan(&count))
	assert.Equal(t, 1, count)

	// pending invitation is gone from the list once accepted
	list, err := svc.List(ctx, &tenants.Scope{TenantID: tenant.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}
