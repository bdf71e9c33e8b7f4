package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error
}

// NoOpLogger discards every event
type NoOpLogger struct{}

// Log implements Logger
func (NoOpLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

// NewEvent creates an event stamped with the current time and the request id
// carried by ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: observability.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// FromRequest creates an event with the client address and user agent of r
func FromRequest(r *http.Request, eventType EventType, status EventStatus) *Event {
	event := NewEvent(r.Context(), eventType, status)
	event.IPAddress = httputil.ClientIP(r)
	event.UserAgent = r.UserAgent()
	return event
}

// WithActor sets the acting user and tenant
func (e *Event) WithActor(userID int64, tenantID *int64) *Event {
	e.UserID = &userID
	e.TenantID = tenantID
	return e
}

// WithResource sets the resource the event refers to
func (e *Event) WithResource(resourceType ResourceType, resourceID string) *Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithError records err as the failure reason
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// Record logs event and swallows any failure. Audit writes never fail the
// request they describe.
func Record(ctx context.Context, logger Logger, event *Event) {
	if logger == nil || event == nil {
		return
	}
	if err := logger.Log(ctx, event); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("event_type", string(event.EventType)).
			Warn("failed to write audit event")
	}
}
