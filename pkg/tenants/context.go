package tenants

import (
	"context"
	"strconv"

	"github.com/platinummonkey/backoffice/pkg/contextkeys"
)

// WithScope stores the resolved scope in ctx for handlers
func WithScope(ctx context.Context, scope *Scope) context.Context {
	ctx = contextkeys.WithScope(ctx, scope)
	if scope != nil && !scope.AllTenants {
		ctx = contextkeys.WithTenantID(ctx, strconv.FormatInt(scope.TenantID, 10))
	}
	return ctx
}

// ScopeFromContext returns the scope set by the tenant middleware, or nil
func ScopeFromContext(ctx context.Context) *Scope {
	scope, _ := ctx.Value(contextkeys.ScopeKey).(*Scope)
	return scope
}
