package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/backoffice/pkg/observability"
)

// DefaultTimeout bounds a single job run
const DefaultTimeout = 5 * time.Minute

// Func is the body of a job. The returned count is logged as rows affected.
type Func func(ctx context.Context) (int64, error)

// Scheduler runs named jobs on cron schedules. A panicking or failing run
// is logged and counted; it never stops the scheduler.
type Scheduler struct {
	cron    *cron.Cron
	logger  *observability.Logger
	metrics *observability.Metrics
	timeout time.Duration
	jobs    map[string]Func
}

// NewScheduler creates a scheduler evaluating schedules in UTC. logger and
// metrics may be nil.
func NewScheduler(logger *observability.Logger, metrics *observability.Metrics) *Scheduler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger,
		metrics: metrics,
		timeout: DefaultTimeout,
		jobs:    make(map[string]Func),
	}
}

// Add registers fn under name on a standard five-field or descriptor
// (@daily, @every 1h) schedule
func (s *Scheduler) Add(name, schedule string, fn Func) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(context.Background(), name, fn) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.jobs[name] = fn
	return nil
}

// Names returns the registered job names, sorted
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow runs a registered job once, synchronously
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	fn, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.run(ctx, name, fn)
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for running jobs to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.WithField("jobs", s.Names()).Info("job scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("job scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, fn Func) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := s.logger.WithField("job", name)
	start := time.Now()

	var affected int64
	err := observability.SafeRun(logger, name, func() error {
		var err error
		affected, err = fn(ctx)
		return err
	})
	s.metrics.RecordJobRun(name, err == nil)

	logger = logger.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		logger.WithError(err).Error("job failed")
		return err
	}
	logger.WithField("affected", affected).Info("job completed")
	return nil
}
