package jobs

import (
	"context"
	"time"

	"github.com/platinummonkey/backoffice/pkg/config"
)

// Job names
const (
	InvitationCleanup = "invitation_cleanup"
	CounterCleanup    = "counter_cleanup"
)

// InvitationCleaner deletes stale invitations
type InvitationCleaner interface {
	CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CounterCleaner deletes counters of closed windows
type CounterCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Register adds the maintenance jobs to s. counters may be nil when the
// counter backend expires keys on its own.
func Register(s *Scheduler, cfg config.JobConfig, invitations InvitationCleaner, counters CounterCleaner) error {
	if err := s.Add(InvitationCleanup, cfg.InvitationCleanupSchedule, func(ctx context.Context) (int64, error) {
		return invitations.CleanupExpired(ctx, cfg.InvitationRetention)
	}); err != nil {
		return err
	}

	if counters != nil {
		if err := s.Add(CounterCleanup, cfg.CounterCleanupSchedule, counters.DeleteExpired); err != nil {
			return err
		}
	}
	return nil
}
