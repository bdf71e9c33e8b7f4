package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/observability"
)

type recordingLogger struct {
	events []*Event
	err    error
}

func (r *recordingLogger) Log(ctx context.Context, event *Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/users/4/suspend", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "backoffice-test")
	req = req.WithContext(observability.WithRequestID(req.Context(), "req-123"))

	event := FromRequest(req, EventTypeUserSuspend, EventStatusSuccess)
	assert.Equal(t, "203.0.113.9", event.IPAddress)
	assert.Equal(t, "backoffice-test", event.UserAgent)
	assert.Equal(t, "req-123", event.RequestID)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotNil(t, event.Metadata)
}

func TestEventBuilders(t *testing.T) {
	tenantID := int64(5)
	event := NewEvent(context.Background(), EventTypeRoleDelete, EventStatusFailure).
		WithActor(9, &tenantID).
		WithResource(ResourceTypeRole, "auditor").
		WithError(errors.New("role in use"))

	require.NotNil(t, event.UserID)
	assert.Equal(t, int64(9), *event.UserID)
	assert.Equal(t, &tenantID, event.TenantID)
	assert.Equal(t, ResourceTypeRole, event.ResourceType)
	assert.Equal(t, "auditor", event.ResourceID)
	assert.Equal(t, "role in use", event.ErrorMessage)

	assert.Empty(t, NewEvent(context.Background(), EventTypeAuthLogin, EventStatusSuccess).WithError(nil).ErrorMessage)
}

func TestRecord_SwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	ctx := observability.WithLogger(context.Background(), observability.NewLogger(observability.DebugLevel, &buf))

	failing := &recordingLogger{err: errors.New("db down")}
	Record(ctx, failing, NewEvent(ctx, EventTypeAuthLogin, EventStatusSuccess))

	assert.Len(t, failing.events, 1)
	assert.Contains(t, buf.String(), "failed to write audit event")
	assert.Contains(t, buf.String(), "db down")

	// nil logger and nil event are ignored
	Record(ctx, nil, NewEvent(ctx, EventTypeAuthLogin, EventStatusSuccess))
	Record(ctx, failing, nil)
	assert.Len(t, failing.events, 1)
}

func TestMultiLogger(t *testing.T) {
	first := &recordingLogger{err: errors.New("first failed")}
	second := &recordingLogger{}

	m := NewMultiLogger(first, second)
	err := m.Log(context.Background(), NewEvent(context.Background(), EventTypeAuthRegister, EventStatusSuccess))

	assert.EqualError(t, err, "first failed")
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)

	assert.NoError(t, NewMultiLogger().Log(context.Background(), &Event{}))
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(observability.NewLogger(observability.InfoLevel, &buf))

	tenantID := int64(3)
	event := NewEvent(context.Background(), EventTypeQuotaReject, EventStatusDenied).
		WithActor(11, &tenantID).
		WithResource(ResourceTypeQuota, "ai.chat")
	event.Message = "minute rate exceeded"

	require.NoError(t, logger.Log(context.Background(), event))

	out := buf.String()
	assert.Contains(t, out, `"event_type":"quota.reject"`)
	assert.Contains(t, out, `"status":"denied"`)
	assert.Contains(t, out, `"resource":"quota:ai.chat"`)
	assert.Contains(t, out, "minute rate exceeded")

	assert.NoError(t, NoOpLogger{}.Log(context.Background(), event))
}
