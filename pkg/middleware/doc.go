// Package middleware provides the HTTP middleware that sits between the
// router and the domain handlers.
//
// # Authentication
//
//	authn := middleware.NewAuthMiddleware(tokenService, false)
//	router.Use(authn.Handler)
//
// A missing, malformed, expired or invalidated bearer token is rejected with
// 401 and a WWW-Authenticate header. The verified identity is stored with
// auth.WithIdentity.
//
// # Tenant scope
//
//	scope := middleware.NewTenantScope(tenants.NewGuard(tenantStore))
//	router.Use(scope.Handler)
//
// The tenant comes from the {tenant_id} route variable or the X-Tenant-ID
// header. Only super-admins may name a tenant other than their own. Unsafe
// methods against a suspended tenant fail with 403 tenant_suspended.
//
// # Quota
//
//	qm := middleware.NewQuotaMiddleware(engine, auditLogger)
//	router.Handle("/ai/chat", qm.Meter("ai_chat", middleware.HeaderCost(1))(handler))
//
// # Rate limiting
//
// RateLimitMiddleware throttles the unauthenticated auth endpoints per
// client IP, backed by either the in-memory RateLimiter or the Redis
// DistributedRateLimiter. Limiter failures let the request through.
package middleware
