package quota

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/backoffice/pkg/observability"
)

// Outcome is the result of an atomic multi-window admission
type Outcome struct {
	Admitted bool
	// Rejected is the index of the first window that would overflow, or -1
	Rejected int
	// Current is the rejected window's value before the attempt
	Current int64
	// Values holds every window's value after an admitted increment
	Values []int64
}

// Counter is an atomic store for window counters. Admit must either
// increment every window or none of them.
type Counter interface {
	Admit(ctx context.Context, windows []Window) (*Outcome, error)
	Current(ctx context.Context, keys []string) ([]int64, error)
	Backend() string
}

// MultiWindowLimiter admits against an ordered list of windows
type MultiWindowLimiter struct {
	counter Counter
	metrics *observability.Metrics
}

// NewMultiWindowLimiter creates a limiter over counter. metrics may be nil.
func NewMultiWindowLimiter(counter Counter, metrics *observability.Metrics) *MultiWindowLimiter {
	return &MultiWindowLimiter{counter: counter, metrics: metrics}
}

// Admit checks every window in order and increments all of them only when
// none would exceed its ceiling
func (l *MultiWindowLimiter) Admit(ctx context.Context, windows []Window) (*Outcome, error) {
	if len(windows) == 0 {
		return nil, errors.New("no windows to admit against")
	}
	start := time.Now()
	outcome, err := l.counter.Admit(ctx, windows)
	l.metrics.ObserveQuotaCheck(l.counter.Backend(), time.Since(start))
	return outcome, err
}

// Current reads the windows' counters without changing them
func (l *MultiWindowLimiter) Current(ctx context.Context, windows []Window) ([]int64, error) {
	keys := make([]string, len(windows))
	for i, w := range windows {
		keys[i] = w.Key
	}
	return l.counter.Current(ctx, keys)
}

// Backend names the counter store
func (l *MultiWindowLimiter) Backend() string {
	return l.counter.Backend()
}
