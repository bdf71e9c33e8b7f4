package invitations

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

// Handlers provides HTTP handlers for invitations
type Handlers struct {
	service *Service
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewHandlers creates new invitation handlers. metrics may be nil.
func NewHandlers(service *Service, auditLogger audit.Logger, metrics *observability.Metrics) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Handlers{service: service, audit: auditLogger, metrics: metrics}
}

// Create handles POST /users/invitations
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := tenants.ScopeFromContext(ctx)
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	var input CreateInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	issued, err := h.service.Create(ctx, scope, auth.IdentityFromContext(ctx), input)
	h.metrics.RecordInvitation("create", err == nil)
	resourceID := ""
	if issued != nil {
		resourceID = strconv.FormatInt(issued.Invitation.ID, 10)
	}
	h.logAudit(r, audit.EventTypeInvitationCreate, resourceID, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, issued)
}

// List handles GET /users/invitations
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	invitations, err := h.service.List(r.Context(), scope)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"invitations": invitations})
}

// Resend handles POST /users/invitations/{invitation_id}/resend
func (h *Handlers) Resend(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	id, ok := httputil.ParsePathInt64OrError(w, r, "invitation_id")
	if !ok {
		return
	}

	issued, err := h.service.Resend(r.Context(), scope, id)
	h.metrics.RecordInvitation("resend", err == nil)
	h.logAudit(r, audit.EventTypeInvitationResend, strconv.FormatInt(id, 10), err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issued)
}

// Delete handles DELETE /users/invitations/{invitation_id}
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return
	}

	id, ok := httputil.ParsePathInt64OrError(w, r, "invitation_id")
	if !ok {
		return
	}

	_, err := h.service.Delete(r.Context(), scope, id)
	h.metrics.RecordInvitation("delete", err == nil)
	h.logAudit(r, audit.EventTypeInvitationDelete, strconv.FormatInt(id, 10), err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Show handles GET /auth/invitation/{token}
func (h *Handlers) Show(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	summary, err := h.service.GetByToken(r.Context(), token)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// Accept handles POST /auth/invitation/{token}/accept
func (h *Handlers) Accept(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	var input AcceptInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	result, err := h.service.Accept(r.Context(), token, input)
	h.metrics.RecordInvitation("accept", err == nil)
	if err != nil {
		audit.Record(r.Context(), h.audit,
			audit.FromRequest(r, audit.EventTypeInvitationAccept, audit.EventStatusFailure).WithError(err))
		httputil.WriteServiceError(w, r, err)
		return
	}

	event := audit.FromRequest(r, audit.EventTypeInvitationAccept, audit.EventStatusSuccess).
		WithActor(result.User.ID, result.User.TenantID).
		WithResource(audit.ResourceTypeUser, strconv.FormatInt(result.User.ID, 10))
	audit.Record(r.Context(), h.audit, event)

	httputil.WriteCreated(w, result)
}

func (h *Handlers) logAudit(r *http.Request, eventType audit.EventType, resourceID string, err error) {
	status := audit.EventStatusSuccess
	if err != nil {
		status = audit.EventStatusFailure
	}
	event := audit.FromRequest(r, eventType, status).
		WithResource(audit.ResourceTypeInvitation, resourceID).
		WithError(err)
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		event.WithActor(identity.UserID, identity.TenantID)
	}
	audit.Record(r.Context(), h.audit, event)
}
