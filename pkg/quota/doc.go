// Package quota admits metered operations against a tenant's plan.
//
// Every admission is checked against three windows in a fixed order: the
// per-minute request rate, the daily token budget and the monthly token
// budget. Window boundaries are calendar boundaries in the tenant's billing
// timezone. The first window that would overflow decides the rejection
// reason, and no window is incremented unless all of them pass.
//
// Two Counter backends provide the all-or-nothing increment:
//
//   - RedisCounter runs a single Lua script.
//   - PostgresCounter runs one transaction of conditional updates against
//     usage_counters.
//
// Typical use:
//
//	limiter := quota.NewMultiWindowLimiter(quota.NewRedisCounter(rdb), metrics)
//	engine := quota.NewEngine(billingService, limiter, metrics, "")
//	decision, err := engine.CheckAndConsume(ctx, tenantID, quota.Operation{Feature: "chat"}, 120)
//
// Rejections are *QuotaError values and render as 429 with Retry-After.
package quota
