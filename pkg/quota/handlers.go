package quota

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/tenants"
)

// ConsumeInput is the body of POST /usage/consume
type ConsumeInput struct {
	Feature string `json:"feature"`
	Cost    int64  `json:"cost"`
}

// Handlers provides HTTP handlers for usage and admission
type Handlers struct {
	engine *Engine
	audit  audit.Logger
}

// NewHandlers creates new usage handlers
func NewHandlers(engine *Engine, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Handlers{engine: engine, audit: auditLogger}
}

// Usage handles GET /usage
func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	report, err := h.engine.Usage(r.Context(), tenantID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

// Consume handles POST /usage/consume
func (h *Handlers) Consume(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var input ConsumeInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	decision, err := h.engine.CheckAndConsume(r.Context(), tenantID, Operation{Feature: input.Feature}, input.Cost)
	if err != nil {
		RecordRejection(r, h.audit, tenantID, err)
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, decision)
}

// RecordRejection audits a quota rejection. Other errors are ignored.
func RecordRejection(r *http.Request, logger audit.Logger, tenantID int64, err error) {
	var qerr *QuotaError
	if !errors.As(err, &qerr) {
		return
	}
	event := audit.FromRequest(r, audit.EventTypeQuotaReject, audit.EventStatusDenied).
		WithResource(audit.ResourceTypeQuota, qerr.Feature).
		WithError(err)
	event.TenantID = &tenantID
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		event.UserID = &identity.UserID
	}
	event.Metadata["reason"] = string(qerr.Reason)
	if qerr.Limit > 0 {
		event.Metadata["limit"] = strconv.FormatInt(qerr.Limit, 10)
	}
	audit.Record(r.Context(), logger, event)
}

func requireTenant(w http.ResponseWriter, r *http.Request) (int64, bool) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.WriteServiceError(w, r, tenants.ErrTenantRequired)
		return 0, false
	}
	tenantID, err := scope.Require()
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return 0, false
	}
	return tenantID, true
}
