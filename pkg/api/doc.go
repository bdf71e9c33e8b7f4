// Package api wires the back-office HTTP surface: the gorilla/mux route
// table, the authentication, tenant scope and permission middleware in front
// of each group of routes, and the few handlers that do not belong to a
// domain package (plans, subscriptions, the audit trail).
//
// # Route groups
//
//   - /auth/register, /auth/login, /auth/refresh and the invitation accept
//     endpoint are public and throttled per client IP.
//   - /auth/me, /auth/password and /plans require a valid access token.
//   - /tenants/{tenant_id}/suspend, /activate, /subscription and
//     /subscriptions/{subscription_id}/status are super-admin only and run
//     without a tenant scope.
//   - /tenants and /audit are cross-tenant reads.
//   - Everything else acts inside one tenant. Those routes are also mounted
//     under /tenants/{tenant_id} for super-admins.
//
// # Usage
//
//	server := api.NewServer(api.Dependencies{...})
//	srv := &http.Server{Addr: ":8080", Handler: server.Handler()}
//
// Handler adds panic recovery, request ids, request logging, CORS, a body
// size limit and an OpenTelemetry server span.
package api
