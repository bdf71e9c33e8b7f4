package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

type tenantMap map[int64]*tenants.Tenant

func (m tenantMap) GetTenant(ctx context.Context, id int64) (*tenants.Tenant, error) {
	if t, ok := m[id]; ok {
		return t, nil
	}
	return nil, tenants.ErrTenantNotFound
}

func testTenants() tenantMap {
	suspendedAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return tenantMap{
		4: {ID: 4, Slug: "acme", Name: "Acme", IsActive: true},
		5: {ID: 5, Slug: "globex", Name: "Globex", IsActive: false, SuspendedAt: &suspendedAt, SuspendedReason: "unpaid"},
	}
}

// scopeEcho reports the resolved scope in response headers
func scopeEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := tenants.ScopeFromContext(r.Context())
		if scope.AllTenants {
			w.Header().Set("X-Scope", "all")
		} else {
			w.Header().Set("X-Scope", "pinned")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func tenantRequest(method, path string, identity *auth.Identity, vars map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func TestTenantScope(t *testing.T) {
	four, five := int64(4), int64(5)
	member := &auth.Identity{UserID: 12, TenantID: &four, RoleSlug: "manager"}
	suspendedMember := &auth.Identity{UserID: 13, TenantID: &five, RoleSlug: "manager"}
	superAdmin := &auth.Identity{UserID: 1, SuperAdmin: true}

	tests := []struct {
		name        string
		method      string
		identity    *auth.Identity
		vars        map[string]string
		header      string
		crossTenant bool
		wantStatus  int
		wantScope   string
	}{
		{"member pinned to own tenant", http.MethodGet, member, nil, "", false, http.StatusOK, "pinned"},
		{"member naming own tenant", http.MethodGet, member, map[string]string{"tenant_id": "4"}, "", false, http.StatusOK, "pinned"},
		{"member naming another tenant", http.MethodGet, member, map[string]string{"tenant_id": "5"}, "", false, http.StatusForbidden, ""},
		{"member header for another tenant", http.MethodGet, member, nil, "5", false, http.StatusForbidden, ""},
		{"member on cross-tenant route", http.MethodGet, member, nil, "", true, http.StatusOK, "pinned"},
		{"bad tenant id", http.MethodGet, member, map[string]string{"tenant_id": "abc"}, "", false, http.StatusUnprocessableEntity, ""},
		{"super-admin without tenant", http.MethodGet, superAdmin, nil, "", false, http.StatusBadRequest, ""},
		{"super-admin cross-tenant", http.MethodGet, superAdmin, nil, "", true, http.StatusOK, "all"},
		{"super-admin header", http.MethodGet, superAdmin, nil, "4", false, http.StatusOK, "pinned"},
		{"super-admin naming tenant on cross-tenant route", http.MethodGet, superAdmin, map[string]string{"tenant_id": "4"}, "", true, http.StatusOK, "pinned"},
		{"super-admin unknown tenant", http.MethodGet, superAdmin, map[string]string{"tenant_id": "99"}, "", false, http.StatusNotFound, ""},
		{"suspended tenant read", http.MethodGet, suspendedMember, nil, "", false, http.StatusOK, "pinned"},
		{"suspended tenant write", http.MethodPost, suspendedMember, nil, "", false, http.StatusForbidden, ""},
		{"super-admin write to suspended tenant", http.MethodPatch, superAdmin, map[string]string{"tenant_id": "5"}, "", false, http.StatusForbidden, ""},
		{"anonymous", http.MethodGet, nil, nil, "", false, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewTenantScope(tenants.NewGuard(testTenants()))
			handler := m.Handler(scopeEcho())
			if tt.crossTenant {
				handler = m.CrossTenant(scopeEcho())
			}

			req := tenantRequest(tt.method, "/users", tt.identity, tt.vars)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantScope, rec.Header().Get("X-Scope"))
		})
	}
}

func TestTenantScope_SuspendedBody(t *testing.T) {
	five := int64(5)
	identity := &auth.Identity{UserID: 13, TenantID: &five}
	handler := NewTenantScope(tenants.NewGuard(testTenants())).Handler(scopeEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, tenantRequest(http.MethodDelete, "/users/3", identity, nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), string(tenants.KindSuspended))
}
