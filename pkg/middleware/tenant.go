package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

// TenantHeader lets super-admins pick a tenant on routes without one in the path
const TenantHeader = "X-Tenant-ID"

// TenantScope resolves the tenant scope of authenticated requests and
// freezes writes to suspended tenants. It must run after AuthMiddleware.
type TenantScope struct {
	guard *tenants.Guard
}

// NewTenantScope creates the tenant scope middleware
func NewTenantScope(guard *tenants.Guard) *TenantScope {
	return &TenantScope{guard: guard}
}

// Handler scopes requests to a single tenant
func (m *TenantScope) Handler(next http.Handler) http.Handler {
	return m.scope(false, next)
}

// CrossTenant lets super-admins span all tenants when the request names
// none. Everyone else is still pinned to their own tenant.
func (m *TenantScope) CrossTenant(next http.Handler) http.Handler {
	return m.scope(true, next)
}

func (m *TenantScope) scope(crossTenant bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())
		if identity == nil {
			httputil.WriteServiceError(w, r, errMissingToken)
			return
		}

		requested, err := requestedTenant(r)
		if err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}

		scope, err := m.guard.ResolveTenant(r.Context(), identity, requested, crossTenant && requested == nil)
		if err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}
		if err := tenants.CheckWritable(scope, r.Method); err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}

		ctx := tenants.WithScope(r.Context(), scope)
		if !scope.AllTenants {
			ctx = observability.WithTenantID(ctx, strconv.FormatInt(scope.TenantID, 10))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestedTenant reads the {tenant_id} path variable, falling back to the
// X-Tenant-ID header
func requestedTenant(r *http.Request) (*int64, error) {
	raw, fromPath := mux.Vars(r)["tenant_id"]
	if !fromPath {
		raw = strings.TrimSpace(r.Header.Get(TenantHeader))
	}
	if raw == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		field := "tenant_id"
		if !fromPath {
			field = TenantHeader
		}
		return nil, validation.Errors{field: "must be a positive integer"}
	}
	return &id, nil
}
