package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/billing"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

// CreateSubscriptionRequest is the body of POST /tenants/{tenant_id}/subscription
type CreateSubscriptionRequest struct {
	Plan     string                     `json:"plan"`
	Status   billing.SubscriptionStatus `json:"status"`
	StartsAt *time.Time                 `json:"starts_at"`
	EndsAt   *time.Time                 `json:"ends_at"`
}

// UpdateStatusRequest is the body of PUT /subscriptions/{subscription_id}/status
type UpdateStatusRequest struct {
	Status billing.SubscriptionStatus `json:"status"`
}

// SubscriptionResponse describes a tenant's current entitlement
type SubscriptionResponse struct {
	Subscription    *billing.Subscription `json:"subscription"`
	Plan            *billing.Plan         `json:"plan"`
	BillingTimezone string                `json:"billing_timezone"`
}

// BillingHandlers handles plan and subscription requests
type BillingHandlers struct {
	billing *billing.Service
	db      *sql.DB
	audit   audit.Logger
	now     func() time.Time
}

// NewBillingHandlers creates a new BillingHandlers
func NewBillingHandlers(service *billing.Service, db *sql.DB, auditLogger audit.Logger) *BillingHandlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &BillingHandlers{billing: service, db: db, audit: auditLogger, now: time.Now}
}

// ListPlans handles GET /plans
func (h *BillingHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.ListPlans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if plans == nil {
		plans = []*billing.Plan{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"plans": plans})
}

// CurrentSubscription handles GET /subscription
func (h *BillingHandlers) CurrentSubscription(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		writeError(w, r, tenants.ErrTenantRequired)
		return
	}
	tenantID, err := scope.Require()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ent, err := h.billing.CurrentEntitlement(r.Context(), tenantID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, SubscriptionResponse{
		Subscription:    ent.Subscription,
		Plan:            ent.Plan,
		BillingTimezone: ent.Location.String(),
	})
}

// CreateSubscription handles POST /tenants/{tenant_id}/subscription
func (h *BillingHandlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "tenant_id")
	if !ok {
		return
	}

	var req CreateSubscriptionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	input := billing.CreateSubscriptionInput{
		TenantID: tenantID,
		PlanSlug: req.Plan,
		Status:   req.Status,
		StartsAt: h.now().UTC(),
		EndsAt:   req.EndsAt,
	}
	if input.Status == "" {
		input.Status = billing.SubscriptionStatusActive
	}
	if req.StartsAt != nil {
		input.StartsAt = *req.StartsAt
	}

	errs := validation.Errors{}
	errs.Required("plan", input.PlanSlug)
	if !input.Status.Valid() {
		errs.Add("status", "unknown subscription status")
	}
	if input.EndsAt != nil && !input.EndsAt.After(input.StartsAt) {
		errs.Add("ends_at", "must be after starts_at")
	}
	if err := errs.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	sub, err := h.billing.CreateSubscription(r.Context(), h.db, input)
	resourceID := ""
	if sub != nil {
		resourceID = strconv.FormatInt(sub.ID, 10)
	}
	h.logAudit(r, audit.EventTypeSubscriptionCreate, tenantID, resourceID, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, sub)
}

// UpdateStatus handles PUT /subscriptions/{subscription_id}/status
func (h *BillingHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "subscription_id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, validation.Errors{"status": "unknown subscription status"})
		return
	}

	sub, err := h.billing.UpdateStatus(r.Context(), id, req.Status)
	var tenantID int64
	if sub != nil {
		tenantID = sub.TenantID
	}
	h.logAudit(r, audit.EventTypeSubscriptionUpdate, tenantID, strconv.FormatInt(id, 10), err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sub)
}

func (h *BillingHandlers) logAudit(r *http.Request, eventType audit.EventType, tenantID int64, resourceID string, err error) {
	status := audit.EventStatusSuccess
	if err != nil {
		status = audit.EventStatusFailure
	}
	event := audit.FromRequest(r, eventType, status).
		WithResource(audit.ResourceTypeSubscription, resourceID).
		WithError(err)
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		var tid *int64
		if tenantID != 0 {
			tid = &tenantID
		}
		event.WithActor(identity.UserID, tid)
	}
	audit.Record(r.Context(), h.audit, event)
}
