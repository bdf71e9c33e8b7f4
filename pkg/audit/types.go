package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin          EventType = "auth.login"
	EventTypeAuthLoginFailed    EventType = "auth.login_failed"
	EventTypeAuthRegister       EventType = "auth.register"
	EventTypeAuthPasswordChange EventType = "auth.password_change"
	EventTypeAuthRefresh        EventType = "auth.refresh"

	// Invitation events
	EventTypeInvitationCreate EventType = "invitation.create"
	EventTypeInvitationResend EventType = "invitation.resend"
	EventTypeInvitationAccept EventType = "invitation.accept"
	EventTypeInvitationDelete EventType = "invitation.delete"

	// Operator events
	EventTypeUserSuspend    EventType = "user.suspend"
	EventTypeUserActivate   EventType = "user.activate"
	EventTypeTenantSuspend  EventType = "tenant.suspend"
	EventTypeTenantActivate EventType = "tenant.activate"

	// Role management events
	EventTypeRoleCreate EventType = "role.create"
	EventTypeRoleUpdate EventType = "role.update"
	EventTypeRoleDelete EventType = "role.delete"

	// Subscription events
	EventTypeSubscriptionCreate EventType = "subscription.create"
	EventTypeSubscriptionUpdate EventType = "subscription.update"

	// Quota events
	EventTypeQuotaReject EventType = "quota.reject"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource an event refers to
type ResourceType string

const (
	ResourceTypeUser         ResourceType = "user"
	ResourceTypeTenant       ResourceType = "tenant"
	ResourceTypeRole         ResourceType = "role"
	ResourceTypeInvitation   ResourceType = "invitation"
	ResourceTypeQuota        ResourceType = "quota"
	ResourceTypeSubscription ResourceType = "subscription"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID   *int64 `json:"user_id,omitempty"`
	TenantID *int64 `json:"tenant_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for listing audit events. TenantID is
// always set for tenant-pinned callers.
type SearchFilter struct {
	TenantID   *int64
	UserID     *int64
	EventTypes []EventType
	Status     *EventStatus
	StartTime  *time.Time
	EndTime    *time.Time

	Limit  int
	Offset int
}

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)
