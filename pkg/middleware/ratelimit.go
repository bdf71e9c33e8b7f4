package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/platinummonkey/backoffice/pkg/config"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
)

// Limiter decides whether another request for key fits the limit
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitError is returned once a client exhausts its window
type RateLimitError struct {
	RetryAfter time.Duration
	Limit      int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter)
}

func (e *RateLimitError) StatusCode() int   { return http.StatusTooManyRequests }
func (e *RateLimitError) ErrorCode() string { return "rate_limited" }

// Headers sets Retry-After on the 429 response
func (e *RateLimitError) Headers() map[string]string {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return map[string]string{
		"Retry-After":       strconv.Itoa(secs),
		"X-RateLimit-Limit": strconv.Itoa(e.Limit),
	}
}

// RateLimiter is an in-memory token bucket limiter for single-instance
// deployments. Each key gets its own rate.Limiter.
type RateLimiter struct {
	cfg      config.RateLimitConfig
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new in-memory rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	limit := rate.Inf
	if cfg.RequestsPerWindow > 0 && cfg.Window > 0 {
		limit = rate.Every(cfg.Window / time.Duration(cfg.RequestsPerWindow))
	}
	return &RateLimiter{
		cfg:      cfg,
		limit:    limit,
		burst:    cfg.RequestsPerWindow + cfg.Burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// getVisitor returns the limiter for key, creating it if necessary.
// Callers hold rl.mu.
func (rl *RateLimiter) getVisitor(key string, now time.Time) *rate.Limiter {
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Allow takes a token from key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	return rl.getVisitor(key, now).AllowN(now, 1), nil
}

// Remaining returns the whole tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		return rl.burst
	}
	tokens := int(v.limiter.TokensAt(rl.now()))
	if tokens < 0 {
		return 0
	}
	return tokens
}

// Cleanup drops limiters idle for two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.cfg.Window*2 {
			delete(rl.visitors, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is cancelled
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.cfg.Window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware throttles requests per client IP. Limiter errors fail
// open.
type RateLimitMiddleware struct {
	limiter Limiter
	cfg     config.RateLimitConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, cfg config.RateLimitConfig, logger *observability.Logger, metrics *observability.Metrics) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RateLimitMiddleware{limiter: limiter, cfg: cfg, logger: logger, metrics: metrics}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + httputil.ClientIP(r)

		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).WithField("key", key).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			m.metrics.RecordAuthEvent("rate_limited", false)
			httputil.WriteServiceError(w, r, &RateLimitError{RetryAfter: m.cfg.Window, Limit: m.cfg.RequestsPerWindow})
			return
		}

		next.ServeHTTP(w, r)
	})
}
