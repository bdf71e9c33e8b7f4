package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/backoffice/pkg/api"
	"github.com/platinummonkey/backoffice/pkg/audit"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/billing"
	"github.com/platinummonkey/backoffice/pkg/config"
	"github.com/platinummonkey/backoffice/pkg/invitations"
	"github.com/platinummonkey/backoffice/pkg/jobs"
	"github.com/platinummonkey/backoffice/pkg/middleware"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/quota"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/storage/postgres"
	"github.com/platinummonkey/backoffice/pkg/tenants"
	"github.com/platinummonkey/backoffice/pkg/users"
	"github.com/platinummonkey/backoffice/pkg/webhooks"
)

var (
	bootstrap = flag.Bool("bootstrap", false, "Apply the schema and seed the plan catalog, then exit")
	runJob    = flag.String("run-job", "", "Run one maintenance job by name and exit")
)

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("backoffice exited with error")
		os.Exit(1)
	}
}

type app struct {
	db       *sql.DB
	rdb      *redis.Client
	registry *prometheus.Registry
	metrics  *observability.Metrics

	billing     *billing.Service
	invitations *invitations.Service
	pgCounter   *quota.PostgresCounter
	server      *api.Server
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = postgres.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	a, err := build(ctx, cfg, logger, db, rdb)
	if err != nil {
		closeAll(db, rdb)
		return err
	}

	if *bootstrap || *runJob != "" {
		defer observability.ShutdownTracing(context.Background(), tp)
	}
	switch {
	case *bootstrap:
		defer closeAll(db, rdb)
		return a.bootstrap(ctx, cfg, logger)
	case *runJob != "":
		defer closeAll(db, rdb)
		scheduler, err := a.scheduler(cfg, logger)
		if err != nil {
			return err
		}
		return scheduler.RunNow(ctx, *runJob)
	}

	return a.serve(ctx, cfg, logger, tp)
}

func build(ctx context.Context, cfg *config.Config, logger *observability.Logger, db *sql.DB, rdb *redis.Client) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	postgres.StartStatsRoutine(ctx, db, metrics, logger, 0)

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	userStore := users.NewStore(db)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	}, userStore)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	billingSvc := billing.NewService(db, cfg.Plans.DefaultPlan)
	usersSvc := users.NewService(db, userStore, tokens, hasher, billingSvc)

	var roleStore rbac.RoleStore = rbac.NewStore(db)
	if cfg.Roles.CacheSize > 0 {
		roleStore = rbac.NewCachedRoleStore(roleStore, cfg.Roles.CacheSize, cfg.Roles.CacheTTL)
	}
	resolver := rbac.NewResolver(roleStore)
	rolesSvc := rbac.NewService(roleStore, resolver)
	tenantStore := tenants.NewStore(db)

	var notifier invitations.Notifier = invitations.NewLogNotifier(logger)
	if cfg.Invitations.WebhookURL != "" {
		notifier = invitations.NewWebhookNotifier(webhooks.NewSender(webhooks.Config{
			URL:     cfg.Invitations.WebhookURL,
			Secret:  cfg.Invitations.WebhookSecret,
			Timeout: cfg.Invitations.WebhookTimeout,
			Retry:   webhooks.RetryConfig{MaxAttempts: cfg.Invitations.WebhookMaxAttempts},
		}), logger)
	}
	invSvc := invitations.NewService(db, roleStore, resolver, hasher, tokens, notifier, invitations.Config{
		TTL:           cfg.Invitations.TTL,
		AcceptBaseURL: cfg.Invitations.AcceptBaseURL,
	})

	var counter quota.Counter
	var pgCounter *quota.PostgresCounter
	switch cfg.Quota.Backend {
	case config.QuotaBackendPostgres:
		pgCounter = quota.NewPostgresCounter(db)
		counter = pgCounter
	default:
		if rdb == nil {
			return nil, errors.New("redis quota backend selected without a redis connection")
		}
		counter = quota.NewRedisCounter(rdb)
	}
	engine := quota.NewEngine(billingSvc, quota.NewMultiWindowLimiter(counter, metrics), metrics, cfg.Quota.KeyPrefix)

	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, fmt.Errorf("audit logger: %w", err)
	}
	auditLogger := audit.NewMultiLogger(dbAudit, audit.NewStructuredLogger(logger))

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			limiter = middleware.NewDistributedRateLimiter(rdb, cfg.RateLimit, middleware.DefaultRateLimitPrefix)
		} else {
			mem := middleware.NewRateLimiter(cfg.RateLimit)
			mem.StartCleanup(ctx)
			limiter = mem
		}
	}

	server := api.NewServer(api.Dependencies{
		Config:      cfg.Server,
		Logger:      logger,
		Metrics:     metrics,
		DB:          db,
		Tokens:      tokens,
		Resolver:    resolver,
		Tenants:     tenantStore,
		Audit:       auditLogger,
		AuditSearch: dbAudit,
		Users:       users.NewHandlers(usersSvc, auditLogger, metrics),
		Invitations: invitations.NewHandlers(invSvc, auditLogger, metrics),
		Roles:       rbac.NewHandlers(rolesSvc, auditLogger),
		TenantAdmin: tenants.NewHandlers(tenantStore, auditLogger),
		Usage:       quota.NewHandlers(engine, auditLogger),
		Billing:     billingSvc,
		AuthLimiter: limiter,
		RateLimit:   cfg.RateLimit,
	})

	return &app{
		db:          db,
		rdb:         rdb,
		registry:    registry,
		metrics:     metrics,
		billing:     billingSvc,
		invitations: invSvc,
		pgCounter:   pgCounter,
		server:      server,
	}, nil
}

func (a *app) bootstrap(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	if err := postgres.ApplySchema(ctx, a.db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	catalog, err := a.billing.Seed(ctx, cfg.Plans.CatalogPath)
	if err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	logger.WithField("plans", len(catalog.Plans)).Info("schema applied and plan catalog seeded")
	return nil
}

func (a *app) scheduler(cfg *config.Config, logger *observability.Logger) (*jobs.Scheduler, error) {
	s := jobs.NewScheduler(logger, a.metrics)
	var counters jobs.CounterCleaner
	if a.pgCounter != nil {
		counters = a.pgCounter
	}
	if err := jobs.Register(s, cfg.Jobs, a.invitations, counters); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	return s, nil
}

func (a *app) serve(ctx context.Context, cfg *config.Config, logger *observability.Logger, tp *sdktrace.TracerProvider) error {
	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      a.server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(a.db, a.rdb,
		observability.WithVersion(cfg.Observability.OTelServiceVersion),
		observability.WithRedisRequired(cfg.Quota.Backend == config.QuotaBackendRedis),
	)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, a.registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return a.db.Close() })
	if a.rdb != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return a.rdb.Close() })
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error { return observability.ShutdownTracing(ctx, tp) })

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		return listen(healthServer)
	})

	if cfg.Jobs.Enabled {
		scheduler, err := a.scheduler(cfg, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return observability.SafeRun(logger, "job scheduler", func() error {
				return scheduler.Run(gctx)
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func closeAll(db *sql.DB, rdb *redis.Client) {
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
}
