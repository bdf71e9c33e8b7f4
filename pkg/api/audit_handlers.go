package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

// AuditSearcher queries stored audit events
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error)
}

// AuditHandlers serves the audit trail
type AuditHandlers struct {
	search AuditSearcher
}

// NewAuditHandlers creates new audit handlers
func NewAuditHandlers(search AuditSearcher) *AuditHandlers {
	return &AuditHandlers{search: search}
}

// List handles GET /audit. Tenant users only ever see their own tenant's
// events; super-admins may narrow by ?tenant_id=.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	scope := tenants.ScopeFromContext(r.Context())
	if scope == nil {
		writeError(w, r, tenants.ErrTenantRequired)
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !scope.AllTenants {
		id := scope.TenantID
		filter.TenantID = &id
	}

	events, err := h.search.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"events": events})
}

func parseAuditFilter(r *http.Request) (audit.SearchFilter, error) {
	q := r.URL.Query()
	errs := validation.Errors{}
	var filter audit.SearchFilter

	parseID := func(key string) *int64 {
		raw := q.Get(key)
		if raw == "" {
			return nil
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			errs.Add(key, "must be a positive integer")
			return nil
		}
		return &id
	}
	parseTime := func(key string) *time.Time {
		raw := q.Get(key)
		if raw == "" {
			return nil
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs.Add(key, "must be an RFC 3339 timestamp")
			return nil
		}
		return &ts
	}

	filter.TenantID = parseID("tenant_id")
	filter.UserID = parseID("user_id")
	filter.StartTime = parseTime("since")
	filter.EndTime = parseTime("until")

	if raw := q.Get("event_type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.EventTypes = append(filter.EventTypes, audit.EventType(t))
			}
		}
	}

	if raw := q.Get("status"); raw != "" {
		status := audit.EventStatus(raw)
		switch status {
		case audit.EventStatusSuccess, audit.EventStatusFailure, audit.EventStatusDenied:
			filter.Status = &status
		default:
			errs.Add("status", "must be success, failure or denied")
		}
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		errs.Add("limit", "must be a non-negative integer")
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		errs.Add("offset", "must be a non-negative integer")
	}
	filter.Limit, filter.Offset = limit, offset

	return filter, errs.Err()
}
