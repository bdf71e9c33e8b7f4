package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
)

// TenantReader loads a tenant by id
type TenantReader interface {
	GetTenant(ctx context.Context, id int64) (*Tenant, error)
}

// Guard resolves the tenant scope of authenticated requests
type Guard struct {
	tenants TenantReader
}

// NewGuard creates a scope guard backed by r
func NewGuard(r TenantReader) *Guard {
	return &Guard{tenants: r}
}

// ResolveTenant builds the scope for identity.
//
// Regular users are pinned to the tenant in their token; a requested tenant
// id must match it. Super-admins are pinned to the requested tenant when one
// is given, span all tenants on cross-tenant routes, and otherwise get
// ErrTenantRequired.
func (g *Guard) ResolveTenant(ctx context.Context, identity *auth.Identity, requested *int64, crossTenant bool) (*Scope, error) {
	if identity == nil {
		return nil, auth.ErrMalformed
	}

	if !identity.SuperAdmin {
		if identity.TenantID == nil {
			return nil, &auth.AuthError{Kind: auth.KindMalformed, Err: errors.New("token has no tenant")}
		}
		if requested != nil && *requested != *identity.TenantID {
			return nil, ErrTenantForbidden
		}
		t, err := g.tenants.GetTenant(ctx, *identity.TenantID)
		if errors.Is(err, ErrTenantNotFound) {
			return nil, &auth.AuthError{Kind: auth.KindInvalidated, Err: errors.New("tenant no longer exists")}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load tenant: %w", err)
		}
		return PinnedScope(t, false), nil
	}

	if crossTenant {
		return AllTenantsScope(), nil
	}
	if requested == nil {
		return nil, ErrTenantRequired
	}

	t, err := g.tenants.GetTenant(ctx, *requested)
	if err != nil {
		return nil, err
	}
	return PinnedScope(t, true), nil
}

// CheckWritable rejects non-safe methods against a suspended tenant. Reads
// stay available so clients can show the suspension notice.
func CheckWritable(scope *Scope, method string) error {
	if scope == nil || scope.Tenant == nil || httputil.IsSafeMethod(method) {
		return nil
	}
	if scope.Tenant.Suspended() {
		return SuspendedError(scope.Tenant)
	}
	return nil
}
