package rbac

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
)

var errAuthenticationRequired = &auth.AuthError{Kind: auth.KindMalformed, Err: errors.New("authentication required")}

// PermissionMiddleware guards routes with permission checks
type PermissionMiddleware struct {
	resolver *Resolver
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(resolver *Resolver) *PermissionMiddleware {
	return &PermissionMiddleware{resolver: resolver}
}

// RequirePermission creates middleware that requires a specific permission
func (pm *PermissionMiddleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return pm.require(perm, func(r *http.Request, identity *auth.Identity) (bool, error) {
		return pm.resolver.HasPermission(r.Context(), identity, perm)
	})
}

// RequireAnyPermission creates middleware that requires at least one of perms
func (pm *PermissionMiddleware) RequireAnyPermission(perms ...string) func(http.Handler) http.Handler {
	return pm.require(strings.Join(perms, "|"), func(r *http.Request, identity *auth.Identity) (bool, error) {
		return pm.resolver.HasAny(r.Context(), identity, perms...)
	})
}

// RequireAllPermissions creates middleware that requires every one of perms
func (pm *PermissionMiddleware) RequireAllPermissions(perms ...string) func(http.Handler) http.Handler {
	return pm.require(strings.Join(perms, ","), func(r *http.Request, identity *auth.Identity) (bool, error) {
		return pm.resolver.HasAll(r.Context(), identity, perms...)
	})
}

// RequireSuperAdmin restricts a route to platform operators. Tenant admins
// holding "*" are still refused.
func (pm *PermissionMiddleware) RequireSuperAdmin() func(http.Handler) http.Handler {
	return pm.require("super-admin", func(r *http.Request, identity *auth.Identity) (bool, error) {
		return identity.SuperAdmin, nil
	})
}

func (pm *PermissionMiddleware) require(label string, check func(*http.Request, *auth.Identity) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				httputil.WriteServiceError(w, r, errAuthenticationRequired)
				return
			}

			allowed, err := check(r, identity)
			if err != nil {
				httputil.WriteServiceError(w, r, err)
				return
			}
			if !allowed {
				httputil.WriteServiceError(w, r, Forbidden(label))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
