// Package billing holds the plan catalog and tenant subscriptions.
//
// # Plans
//
// A plan carries three hard ceilings (monthly tokens, daily tokens,
// requests per minute) and boolean feature flags such as chat, autofill and
// summarize. Plans are defined in a YAML catalog and upserted by slug:
//
//	plans:
//	  - slug: free
//	    monthly_token_limit: 5000
//	    daily_token_limit: 500
//	    requests_per_minute: 5
//	    features: {chat: true, autofill: false}
//
// The built-in catalog ships free, pro and enterprise.
//
// # Subscriptions
//
// A tenant has at most one subscription with status active or trial. The
// partial unique index subscriptions_one_current enforces this and
// violations surface as ErrSubscriptionConflict.
//
//	ent, err := svc.CurrentEntitlement(ctx, tenantID, time.Now())
//	if errors.Is(err, billing.ErrNoSubscription) { ... }
//
// The quota engine reads plans only through EntitlementResolver.
package billing
