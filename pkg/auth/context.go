package auth

import (
	"context"

	"github.com/platinummonkey/backoffice/pkg/contextkeys"
)

// WithIdentity stores the verified identity in ctx
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return contextkeys.WithIdentity(ctx, identity)
}

// IdentityFromContext returns the identity set by the auth middleware, or nil
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(contextkeys.IdentityKey).(*Identity)
	return identity
}
