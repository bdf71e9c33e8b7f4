package tenants

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

// SuspendInput is the body of POST /tenants/{tenant_id}/suspend
type SuspendInput struct {
	Reason string `json:"reason"`
}

// Handlers provides HTTP handlers for tenant operations
type Handlers struct {
	store *Store
	audit audit.Logger
}

// NewHandlers creates new tenant handlers
func NewHandlers(store *Store, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Handlers{store: store, audit: auditLogger}
}

// Current handles GET /tenant. It stays readable while the tenant is
// suspended.
func (h *Handlers) Current(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil || scope.Tenant == nil {
		httputil.WriteServiceError(w, r, ErrTenantRequired)
		return
	}
	httputil.WriteSuccess(w, scope.Tenant)
}

// List handles GET /tenants
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, ErrTenantRequired)
		return
	}

	tenants, err := h.store.ListTenants(r.Context(), scope)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*Tenant{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"tenants": tenants})
}

// Suspend handles POST /tenants/{tenant_id}/suspend
func (h *Handlers) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "tenant_id")
	if !ok {
		return
	}

	var input SuspendInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	errs := validation.Errors{}
	errs.Required("reason", input.Reason)
	errs.MaxLength("reason", input.Reason, 500)
	if err := errs.Err(); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	t, err := h.store.Suspend(r.Context(), id, input.Reason)
	h.record(r, audit.EventTypeTenantSuspend, id, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

// Activate handles POST /tenants/{tenant_id}/activate
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "tenant_id")
	if !ok {
		return
	}

	t, err := h.store.Activate(r.Context(), id)
	h.record(r, audit.EventTypeTenantActivate, id, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

func (h *Handlers) record(r *http.Request, eventType audit.EventType, tenantID int64, err error) {
	status := audit.EventStatusSuccess
	if err != nil {
		status = audit.EventStatusFailure
	}
	event := audit.FromRequest(r, eventType, status).
		WithResource(audit.ResourceTypeTenant, strconv.FormatInt(tenantID, 10)).
		WithError(err)
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		event.WithActor(identity.UserID, &tenantID)
	}
	audit.Record(r.Context(), h.audit, event)
}
