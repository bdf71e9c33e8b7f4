package quota

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Reason says why an admission was rejected
type Reason string

const (
	ReasonNoSubscription        Reason = "no_subscription"
	ReasonFeatureDisabled       Reason = "feature_disabled"
	ReasonMinuteRateExceeded    Reason = "minute_rate_exceeded"
	ReasonDailyBudgetExceeded   Reason = "daily_budget_exceeded"
	ReasonMonthlyBudgetExceeded Reason = "monthly_budget_exceeded"
)

// WindowKind is the length of a counting window
type WindowKind string

const (
	WindowMinute WindowKind = "minute"
	WindowDay    WindowKind = "day"
	WindowMonth  WindowKind = "month"
)

// Operation identifies the metered action being admitted
type Operation struct {
	Feature string `json:"feature"`
}

// Window is one counter checked during admission. Ceiling and Increment
// are in requests for the minute window and tokens otherwise.
type Window struct {
	Kind      WindowKind
	Key       string
	Ceiling   int64
	Increment int64
	ResetAt   time.Time
	TTL       time.Duration
}

// WindowUsage reports a window's counter against its ceiling
type WindowUsage struct {
	Kind      WindowKind `json:"window"`
	Limit     int64      `json:"limit"`
	Used      int64      `json:"used"`
	Remaining int64      `json:"remaining"`
	ResetsAt  time.Time  `json:"resets_at"`
}

// Decision is an admitted request
type Decision struct {
	TenantID int64         `json:"tenant_id"`
	Feature  string        `json:"feature"`
	Cost     int64         `json:"cost"`
	Plan     string        `json:"plan,omitempty"`
	Windows  []WindowUsage `json:"windows"`
}

// Report is the current usage of a tenant
type Report struct {
	TenantID int64           `json:"tenant_id"`
	Plan     string          `json:"plan,omitempty"`
	Status   string          `json:"status"`
	Features map[string]bool `json:"features"`
	Windows  []WindowUsage   `json:"windows"`
}

// QuotaError is a rejected admission. Limit and Current describe the
// breached window, RetryAfter the time until it resets; all three are zero
// for NoSubscription and FeatureDisabled.
type QuotaError struct {
	Reason     Reason
	Feature    string
	Limit      int64
	Current    int64
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	switch e.Reason {
	case ReasonNoSubscription:
		return "tenant has no active subscription"
	case ReasonFeatureDisabled:
		return fmt.Sprintf("feature %q is not enabled on the current plan", e.Feature)
	}
	return fmt.Sprintf("quota exceeded: %s (%d of %d used)", e.Reason, e.Current, e.Limit)
}

// Is matches any QuotaError with the same reason
func (e *QuotaError) Is(target error) bool {
	t, ok := target.(*QuotaError)
	return ok && t.Reason == e.Reason
}

// StatusCode implements httputil.HTTPError
func (e *QuotaError) StatusCode() int { return http.StatusTooManyRequests }

// ErrorCode implements httputil.HTTPError
func (e *QuotaError) ErrorCode() string { return string(e.Reason) }

// Details implements httputil.DetailedError
func (e *QuotaError) Details() map[string]string {
	d := map[string]string{"reason": string(e.Reason)}
	if e.RetryAfter > 0 {
		d["retry_after"] = strconv.Itoa(e.retryAfterSeconds())
	}
	return d
}

// Headers implements httputil.HeaderError
func (e *QuotaError) Headers() map[string]string {
	h := map[string]string{}
	if e.RetryAfter > 0 {
		h["Retry-After"] = strconv.Itoa(e.retryAfterSeconds())
	}
	if e.Limit > 0 {
		h["X-Quota-Limit"] = strconv.FormatInt(e.Limit, 10)
	}
	return h
}

func (e *QuotaError) retryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// Sentinels for errors.Is
var (
	ErrNoSubscription        = &QuotaError{Reason: ReasonNoSubscription}
	ErrFeatureDisabled       = &QuotaError{Reason: ReasonFeatureDisabled}
	ErrMinuteRateExceeded    = &QuotaError{Reason: ReasonMinuteRateExceeded}
	ErrDailyBudgetExceeded   = &QuotaError{Reason: ReasonDailyBudgetExceeded}
	ErrMonthlyBudgetExceeded = &QuotaError{Reason: ReasonMonthlyBudgetExceeded}
)

func reasonFor(kind WindowKind) Reason {
	switch kind {
	case WindowMinute:
		return ReasonMinuteRateExceeded
	case WindowDay:
		return ReasonDailyBudgetExceeded
	default:
		return ReasonMonthlyBudgetExceeded
	}
}
