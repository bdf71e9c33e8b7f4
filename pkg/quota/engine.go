package quota

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/backoffice/pkg/billing"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/validation"
)

// DefaultKeyPrefix namespaces counter keys
const DefaultKeyPrefix = "quota"

const resultAdmit = "admit"

// Engine admits metered operations against a tenant's plan
type Engine struct {
	entitlements billing.EntitlementResolver
	limiter      *MultiWindowLimiter
	metrics      *observability.Metrics
	prefix       string
	now          func() time.Time
}

// NewEngine creates a quota engine. metrics may be nil; an empty prefix
// uses DefaultKeyPrefix.
func NewEngine(entitlements billing.EntitlementResolver, limiter *MultiWindowLimiter, metrics *observability.Metrics, prefix string) *Engine {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Engine{
		entitlements: entitlements,
		limiter:      limiter,
		metrics:      metrics,
		prefix:       prefix,
		now:          time.Now,
	}
}

// CheckAndConsume admits op for tenantID at cost tokens, or returns a
// *QuotaError naming the first constraint that failed. Checks run in this
// order: subscription, feature flag, minute rate, daily budget, monthly
// budget. Nothing is consumed on rejection.
func (e *Engine) CheckAndConsume(ctx context.Context, tenantID int64, op Operation, cost int64) (*Decision, error) {
	ctx, span := observability.Tracer().Start(ctx, "quota.CheckAndConsume", trace.WithAttributes(
		attribute.Int64("tenant.id", tenantID),
		attribute.String("quota.feature", op.Feature),
		attribute.Int64("quota.cost", cost),
		attribute.String("quota.backend", e.limiter.Backend()),
	))
	defer span.End()

	decision, err := e.checkAndConsume(ctx, tenantID, op, cost)

	var qerr *QuotaError
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("quota.result", resultAdmit))
		e.metrics.RecordQuotaDecision(op.Feature, resultAdmit, cost)
	case errors.As(err, &qerr):
		span.SetAttributes(attribute.String("quota.result", string(qerr.Reason)))
		e.metrics.RecordQuotaDecision(op.Feature, string(qerr.Reason), 0)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return decision, err
}

func (e *Engine) checkAndConsume(ctx context.Context, tenantID int64, op Operation, cost int64) (*Decision, error) {
	errs := validation.Errors{}
	errs.Required("feature", op.Feature)
	errs.NonNegative("cost", cost)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if cost == 0 {
		return &Decision{TenantID: tenantID, Feature: op.Feature, Windows: []WindowUsage{}}, nil
	}

	now := e.now()
	ent, err := e.entitlements.CurrentEntitlement(ctx, tenantID, now)
	if errors.Is(err, billing.ErrNoSubscription) {
		return nil, &QuotaError{Reason: ReasonNoSubscription, Feature: op.Feature}
	}
	if err != nil {
		return nil, err
	}

	plan := ent.Plan
	if !plan.FeatureEnabled(op.Feature) || plan.HasZeroCeiling() {
		return nil, &QuotaError{Reason: ReasonFeatureDisabled, Feature: op.Feature}
	}

	windows := BuildWindows(e.prefix, tenantID, plan, ent.Location, now, cost)
	outcome, err := e.limiter.Admit(ctx, windows)
	if err != nil {
		return nil, err
	}

	if !outcome.Admitted {
		breached := windows[outcome.Rejected]
		return nil, &QuotaError{
			Reason:     reasonFor(breached.Kind),
			Feature:    op.Feature,
			Limit:      breached.Ceiling,
			Current:    outcome.Current,
			RetryAfter: breached.ResetAt.Sub(now),
		}
	}

	usage := make([]WindowUsage, len(windows))
	for i, w := range windows {
		usage[i] = usageOf(w, outcome.Values[i])
	}
	return &Decision{
		TenantID: tenantID,
		Feature:  op.Feature,
		Cost:     cost,
		Plan:     plan.Slug,
		Windows:  usage,
	}, nil
}

// Usage reports the tenant's current counters. A tenant without a current
// subscription gets status no_subscription and no windows.
func (e *Engine) Usage(ctx context.Context, tenantID int64) (*Report, error) {
	now := e.now()
	ent, err := e.entitlements.CurrentEntitlement(ctx, tenantID, now)
	if errors.Is(err, billing.ErrNoSubscription) {
		return &Report{
			TenantID: tenantID,
			Status:   string(ReasonNoSubscription),
			Features: map[string]bool{},
			Windows:  []WindowUsage{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	windows := BuildWindows(e.prefix, tenantID, ent.Plan, ent.Location, now, 0)
	values, err := e.limiter.Current(ctx, windows)
	if err != nil {
		return nil, err
	}

	usage := make([]WindowUsage, len(windows))
	for i, w := range windows {
		usage[i] = usageOf(w, values[i])
	}
	features := ent.Plan.Features
	if features == nil {
		features = map[string]bool{}
	}
	return &Report{
		TenantID: tenantID,
		Plan:     ent.Plan.Slug,
		Status:   string(ent.Subscription.Status),
		Features: features,
		Windows:  usage,
	}, nil
}
