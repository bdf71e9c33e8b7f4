package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/billing"
	"github.com/platinummonkey/backoffice/pkg/config"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/invitations"
	"github.com/platinummonkey/backoffice/pkg/middleware"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/quota"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/users"
)

// Dependencies are the wired services the API server routes to
type Dependencies struct {
	Config  config.ServerConfig
	Logger  *observability.Logger
	Metrics *observability.Metrics

	DB       *sql.DB
	Tokens   middleware.TokenVerifier
	Resolver *rbac.Resolver
	Tenants  tenants.TenantReader
	Audit    audit.Logger
	// AuditSearch backs GET /audit; nil leaves the route unregistered
	AuditSearch AuditSearcher

	Users       *users.Handlers
	Invitations *invitations.Handlers
	Roles       *rbac.Handlers
	TenantAdmin *tenants.Handlers
	Usage       *quota.Handlers
	Billing     *billing.Service

	// AuthLimiter throttles the unauthenticated auth endpoints; nil disables it
	AuthLimiter middleware.Limiter
	RateLimit   config.RateLimitConfig
}

// Server is the back-office HTTP API
type Server struct {
	deps   Dependencies
	router *mux.Router

	authn       *middleware.AuthMiddleware
	scope       *middleware.TenantScope
	permissions *rbac.PermissionMiddleware
	rateLimit   *middleware.RateLimitMiddleware

	billing *BillingHandlers
	audit   *AuditHandlers
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NoOpLogger{}
	}

	s := &Server{
		deps:        deps,
		router:      mux.NewRouter(),
		authn:       middleware.NewAuthMiddleware(deps.Tokens, false),
		scope:       middleware.NewTenantScope(tenants.NewGuard(deps.Tenants)),
		permissions: rbac.NewPermissionMiddleware(deps.Resolver),
	}
	if deps.AuthLimiter != nil {
		s.rateLimit = middleware.NewRateLimitMiddleware(deps.AuthLimiter, deps.RateLimit, deps.Logger, deps.Metrics)
	}
	if deps.Billing != nil {
		s.billing = NewBillingHandlers(deps.Billing, deps.DB, deps.Audit)
	}
	if deps.AuditSearch != nil {
		s.audit = NewAuditHandlers(deps.AuditSearch)
	}

	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteServiceError(w, r, errRouteNotFound)
	})
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	perm := s.permissions.RequirePermission

	// Unauthenticated auth endpoints
	public := s.router.NewRoute().Subrouter()
	public.Handle("/auth/register", s.throttled(s.deps.Users.Register)).Methods(http.MethodPost)
	public.Handle("/auth/login", s.throttled(s.deps.Users.Login)).Methods(http.MethodPost)
	public.Handle("/auth/refresh", s.throttled(s.deps.Users.Refresh)).Methods(http.MethodPost)
	public.HandleFunc("/auth/invitation/{token}", s.deps.Invitations.Show).Methods(http.MethodGet)
	public.Handle("/auth/invitation/{token}/accept", s.throttled(s.deps.Invitations.Accept)).Methods(http.MethodPost)

	// Authenticated, tenant-independent endpoints
	authed := s.router.NewRoute().Subrouter()
	authed.Use(s.authn.Handler)
	authed.HandleFunc("/auth/me", s.deps.Users.Me).Methods(http.MethodGet)
	if s.billing != nil {
		authed.HandleFunc("/plans", s.billing.ListPlans).Methods(http.MethodGet)
	}

	// Credential changes are writes: tenant users of a suspended tenant are
	// frozen, super-admins are scoped to all tenants and pass.
	account := s.router.NewRoute().Subrouter()
	account.Use(s.authn.Handler, s.scope.CrossTenant)
	account.HandleFunc("/auth/password", s.deps.Users.ChangePassword).Methods(http.MethodPut)

	// Platform operator endpoints. These run without a tenant scope so a
	// suspended tenant can still be reactivated.
	operator := s.router.NewRoute().Subrouter()
	operator.Use(s.authn.Handler, s.permissions.RequireSuperAdmin(), perm(rbac.PermTenantsManage))
	operator.HandleFunc("/tenants/{tenant_id:[0-9]+}/suspend", s.deps.TenantAdmin.Suspend).Methods(http.MethodPost)
	operator.HandleFunc("/tenants/{tenant_id:[0-9]+}/activate", s.deps.TenantAdmin.Activate).Methods(http.MethodPost)
	if s.billing != nil {
		operator.HandleFunc("/tenants/{tenant_id:[0-9]+}/subscription", s.billing.CreateSubscription).Methods(http.MethodPost)
		operator.HandleFunc("/subscriptions/{subscription_id:[0-9]+}/status", s.billing.UpdateStatus).Methods(http.MethodPut)
	}

	// Cross-tenant reads: super-admins see every tenant, everyone else their own
	crossTenant := s.router.NewRoute().Subrouter()
	crossTenant.Use(s.authn.Handler, s.scope.CrossTenant)
	crossTenant.Handle("/tenants", perm(rbac.PermTenantsManage)(http.HandlerFunc(s.deps.TenantAdmin.List))).Methods(http.MethodGet)
	if s.audit != nil {
		crossTenant.Handle("/audit", perm(rbac.PermAuditView)(http.HandlerFunc(s.audit.List))).Methods(http.MethodGet)
	}

	// Tenant-pinned routes, reachable directly (tenant from the token or
	// X-Tenant-ID) and under /tenants/{tenant_id} for super-admins
	direct := s.router.NewRoute().Subrouter()
	direct.Use(s.authn.Handler, s.scope.Handler)
	s.tenantRoutes(direct)

	mirror := s.router.PathPrefix("/tenants/{tenant_id:[0-9]+}").Subrouter()
	mirror.Use(s.authn.Handler, s.scope.Handler)
	s.tenantRoutes(mirror)
}

// tenantRoutes registers the routes that act inside one tenant
func (s *Server) tenantRoutes(r *mux.Router) {
	perm := s.permissions.RequirePermission
	handle := func(path, method, permission string, h http.HandlerFunc) {
		r.Handle(path, perm(permission)(h)).Methods(method)
	}

	r.HandleFunc("/tenant", s.deps.TenantAdmin.Current).Methods(http.MethodGet)

	handle("/users", http.MethodGet, rbac.PermUsersView, s.deps.Users.List)
	handle("/users/{user_id:[0-9]+}/suspend", http.MethodPost, rbac.PermUsersManage, s.deps.Users.Suspend)
	handle("/users/{user_id:[0-9]+}/activate", http.MethodPost, rbac.PermUsersManage, s.deps.Users.Activate)

	handle("/users/invitations", http.MethodPost, rbac.PermUsersManage, s.deps.Invitations.Create)
	handle("/users/invitations", http.MethodGet, rbac.PermUsersView, s.deps.Invitations.List)
	handle("/users/invitations/{invitation_id:[0-9]+}/resend", http.MethodPost, rbac.PermUsersManage, s.deps.Invitations.Resend)
	handle("/users/invitations/{invitation_id:[0-9]+}", http.MethodDelete, rbac.PermUsersManage, s.deps.Invitations.Delete)

	handle("/roles", http.MethodGet, rbac.PermRolesView, s.deps.Roles.ListRoles)
	handle("/roles", http.MethodPost, rbac.PermRolesManage, s.deps.Roles.CreateRole)
	handle("/roles/{slug}", http.MethodPut, rbac.PermRolesManage, s.deps.Roles.UpdateRole)
	handle("/roles/{slug}", http.MethodDelete, rbac.PermRolesManage, s.deps.Roles.DeleteRole)

	handle("/usage", http.MethodGet, rbac.PermUsageView, s.deps.Usage.Usage)
	handle("/usage/consume", http.MethodPost, rbac.PermAIUse, s.deps.Usage.Consume)
	if s.billing != nil {
		handle("/subscription", http.MethodGet, rbac.PermUsageView, s.billing.CurrentSubscription)
	}
}

// throttled wraps h with the auth rate limiter when one is configured
func (s *Server) throttled(h http.HandlerFunc) http.Handler {
	if s.rateLimit == nil {
		return h
	}
	return s.rateLimit.Handler(h)
}

// Router exposes the route table for tests and route walking
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped in the shared middleware chain
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.deps.Logger),
		httputil.CORSMiddleware(s.deps.Config.CORSOrigins),
	}
	if s.deps.Config.MaxBodyBytes > 0 {
		middlewares = append(middlewares, httputil.MaxBytesMiddleware(s.deps.Config.MaxBodyBytes))
	}
	return otelhttp.NewHandler(httputil.Chain(middlewares...)(s.router), "backoffice-api")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
