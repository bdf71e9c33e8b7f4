package billing

import (
	"errors"
	"time"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// Valid reports whether s is a known status
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue,
		SubscriptionStatusCanceled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// Current reports whether the status can make a subscription current
func (s SubscriptionStatus) Current() bool {
	return s == SubscriptionStatusTrial || s == SubscriptionStatusActive
}

// Features gated by plan flags
const (
	FeatureChat      = "chat"
	FeatureAutofill  = "autofill"
	FeatureSummarize = "summarize"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoSubscription       = errors.New("tenant has no current subscription")
	// ErrSubscriptionConflict is returned when a tenant already has an
	// active or trial subscription
	ErrSubscriptionConflict = errors.New("tenant already has a current subscription")
)

// Plan is a subscription tier with hard usage ceilings
type Plan struct {
	ID                int64           `json:"id"`
	Slug              string          `json:"slug"`
	Name              string          `json:"name"`
	MonthlyTokenLimit int64           `json:"monthly_token_limit"`
	DailyTokenLimit   int64           `json:"daily_token_limit"`
	RequestsPerMinute int64           `json:"requests_per_minute"`
	Features          map[string]bool `json:"features"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// FeatureEnabled reports whether the plan's flag for feature is set
func (p *Plan) FeatureEnabled(feature string) bool {
	return p.Features[feature]
}

// HasZeroCeiling reports whether any ceiling disables metering entirely
func (p *Plan) HasZeroCeiling() bool {
	return p.MonthlyTokenLimit == 0 || p.DailyTokenLimit == 0 || p.RequestsPerMinute == 0
}

// Subscription binds a tenant to a plan for a validity window
type Subscription struct {
	ID        int64              `json:"id"`
	TenantID  int64              `json:"tenant_id"`
	PlanID    int64              `json:"plan_id"`
	Status    SubscriptionStatus `json:"status"`
	StartsAt  time.Time          `json:"starts_at"`
	EndsAt    *time.Time         `json:"ends_at,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CurrentAt reports whether the subscription is current at now
func (s *Subscription) CurrentAt(now time.Time) bool {
	if !s.Status.Current() || s.StartsAt.After(now) {
		return false
	}
	return s.EndsAt == nil || s.EndsAt.After(now)
}

// Entitlement is what a tenant may consume right now
type Entitlement struct {
	Subscription *Subscription
	Plan         *Plan
	// Location is the tenant's billing timezone
	Location *time.Location
}

// CreateSubscriptionInput describes a new subscription
type CreateSubscriptionInput struct {
	TenantID int64
	PlanSlug string
	Status   SubscriptionStatus
	StartsAt time.Time
	EndsAt   *time.Time
}
