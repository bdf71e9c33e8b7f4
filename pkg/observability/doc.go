// Package observability provides structured logging, Prometheus metrics, health
// checks, graceful shutdown and OpenTelemetry tracing.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("tenant_id", 7).Info("tenant suspended")
//
// Request handlers pull the request-scoped logger (request, user and tenant ids
// already attached) from the context:
//
//	observability.FromContext(r.Context()).WithError(err).Error("invite failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordQuotaDecision("chat", "admit", 120)
//
// All Record* helpers are safe on a nil *Metrics so components can run without
// metrics in tests.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, observability.WithRedisRequired(true))
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	defer observability.ShutdownTracing(ctx, tp)
//	ctx, span := observability.Tracer().Start(ctx, "quota.check_and_consume")
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
