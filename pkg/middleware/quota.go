package middleware

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/quota"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

// CostHeader lets a metered request declare its token cost
const CostHeader = "X-Quota-Cost"

// CostFunc returns the token cost of a request
type CostFunc func(r *http.Request) (int64, error)

// FixedCost charges every request the same cost
func FixedCost(cost int64) CostFunc {
	return func(*http.Request) (int64, error) { return cost, nil }
}

// HeaderCost reads the cost from X-Quota-Cost, defaulting to def
func HeaderCost(def int64) CostFunc {
	return func(r *http.Request) (int64, error) {
		raw := r.Header.Get(CostHeader)
		if raw == "" {
			return def, nil
		}
		cost, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cost < 0 {
			return 0, validation.Errors{CostHeader: "must be a non-negative integer"}
		}
		return cost, nil
	}
}

// QuotaMiddleware admits metered routes through the quota engine. It must
// run after TenantScope.
type QuotaMiddleware struct {
	engine *quota.Engine
	audit  audit.Logger
}

// NewQuotaMiddleware creates the quota middleware
func NewQuotaMiddleware(engine *quota.Engine, auditLogger audit.Logger) *QuotaMiddleware {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &QuotaMiddleware{engine: engine, audit: auditLogger}
}

// Meter charges each request to feature. Rejected requests get 429 and
// never reach next.
func (m *QuotaMiddleware) Meter(feature string, cost CostFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := tenants.ScopeFromContext(r.Context())
			if scope == nil {
				httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
				return
			}
			tenantID, err := scope.Require()
			if err != nil {
				httputil.WriteServiceError(w, r, err)
				return
			}

			n, err := cost(r)
			if err != nil {
				httputil.WriteServiceError(w, r, err)
				return
			}

			decision, err := m.engine.CheckAndConsume(r.Context(), tenantID, quota.Operation{Feature: feature}, n)
			if err != nil {
				quota.RecordRejection(r, m.audit, tenantID, err)
				httputil.WriteServiceError(w, r, err)
				return
			}

			for _, win := range decision.Windows {
				if win.Kind == quota.WindowMinute {
					w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(win.Limit, 10))
					w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(win.Remaining, 10))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
