package rbac

import (
	"net/http"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

// Handlers provides HTTP handlers for role management
type Handlers struct {
	service *Service
	audit   audit.Logger
}

// NewHandlers creates new role handlers
func NewHandlers(service *Service, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Handlers{service: service, audit: auditLogger}
}

// ListRoles handles GET /roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	roles, err := h.service.List(r.Context(), scope)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"roles": roles})
}

// CreateRole handles POST /roles
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := tenants.ScopeFromContext(ctx)
	identity := auth.IdentityFromContext(ctx)
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	var input CreateRoleInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	role, err := h.service.Create(ctx, scope, identity, input)
	h.logAudit(r, audit.EventTypeRoleCreate, input.Slug, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// UpdateRole handles PUT /roles/{slug}
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := tenants.ScopeFromContext(ctx)
	identity := auth.IdentityFromContext(ctx)
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}

	var input UpdateRoleInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	role, err := h.service.Update(ctx, scope, identity, slug, input)
	h.logAudit(r, audit.EventTypeRoleUpdate, slug, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole handles DELETE /roles/{slug}
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := tenants.ScopeFromContext(ctx)
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}

	_, err := h.service.Delete(ctx, scope, slug)
	h.logAudit(r, audit.EventTypeRoleDelete, slug, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) logAudit(r *http.Request, eventType audit.EventType, slug string, err error) {
	status := audit.EventStatusSuccess
	if err != nil {
		status = audit.EventStatusFailure
	}
	event := audit.FromRequest(r, eventType, status).
		WithResource(audit.ResourceTypeRole, slug).
		WithError(err)
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		var tenantID *int64
		if scope := tenants.ScopeFromContext(r.Context()); scope != nil && !scope.AllTenants {
			id := scope.TenantID
			tenantID = &id
		}
		event.WithActor(identity.UserID, tenantID)
	}
	audit.Record(r.Context(), h.audit, event)
}
