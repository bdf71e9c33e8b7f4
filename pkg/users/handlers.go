package users

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

// Handlers provides HTTP handlers for authentication and user management
type Handlers struct {
	service *Service
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewHandlers creates new user handlers. metrics may be nil.
func NewHandlers(service *Service, auditLogger audit.Logger, metrics *observability.Metrics) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Handlers{service: service, audit: auditLogger, metrics: metrics}
}

// Register handles POST /auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	result, err := h.service.Register(r.Context(), input)
	h.metrics.RecordAuthEvent("register", err == nil)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	event := audit.FromRequest(r, audit.EventTypeAuthRegister, audit.EventStatusSuccess).
		WithActor(result.User.ID, result.User.TenantID).
		WithResource(audit.ResourceTypeTenant, strconv.FormatInt(result.Tenant.ID, 10))
	audit.Record(r.Context(), h.audit, event)

	httputil.WriteCreated(w, result)
}

// Login handles POST /auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	result, err := h.service.Login(r.Context(), input)
	h.metrics.RecordAuthEvent("login", err == nil)
	if err != nil {
		event := audit.FromRequest(r, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure).WithError(err)
		event.Metadata["email"] = input.Email
		audit.Record(r.Context(), h.audit, event)
		httputil.WriteServiceError(w, r, err)
		return
	}

	event := audit.FromRequest(r, audit.EventTypeAuthLogin, audit.EventStatusSuccess).
		WithActor(result.User.ID, result.User.TenantID)
	audit.Record(r.Context(), h.audit, event)

	httputil.WriteSuccess(w, result)
}

// Refresh handles POST /auth/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var input RefreshInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), input)
	h.metrics.RecordAuthEvent("refresh", err == nil)
	if err != nil {
		audit.Record(r.Context(), h.audit,
			audit.FromRequest(r, audit.EventTypeAuthRefresh, audit.EventStatusFailure).WithError(err))
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// ChangePassword handles PUT /auth/password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())

	var input ChangePasswordInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	tokens, err := h.service.ChangePassword(r.Context(), identity, input)
	h.metrics.RecordAuthEvent("password_change", err == nil)
	if identity != nil {
		status := audit.EventStatusSuccess
		if err != nil {
			status = audit.EventStatusFailure
		}
		audit.Record(r.Context(), h.audit,
			audit.FromRequest(r, audit.EventTypeAuthPasswordChange, status).
				WithActor(identity.UserID, identity.TenantID).
				WithError(err))
	}
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// Me handles GET /auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// List handles GET /users
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	users, err := h.service.List(r.Context(), scope)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": users})
}

// Suspend handles POST /users/{user_id}/suspend
func (h *Handlers) Suspend(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var input SuspendInput
	if r.ContentLength != 0 && !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	user, err := h.service.Suspend(r.Context(), scope, auth.IdentityFromContext(r.Context()), userID, input)
	h.logAudit(r, audit.EventTypeUserSuspend, userID, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// Activate handles POST /users/{user_id}/activate
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	user, err := h.service.Activate(r.Context(), scope, auth.IdentityFromContext(r.Context()), userID)
	h.logAudit(r, audit.EventTypeUserActivate, userID, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *Handlers) logAudit(r *http.Request, eventType audit.EventType, userID int64, err error) {
	status := audit.EventStatusSuccess
	if err != nil {
		status = audit.EventStatusFailure
	}
	event := audit.FromRequest(r, eventType, status).
		WithResource(audit.ResourceTypeUser, strconv.FormatInt(userID, 10)).
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
