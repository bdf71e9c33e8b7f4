// Package jobs schedules periodic maintenance with robfig/cron: deleting
// invitations that expired long ago and, with the Postgres quota backend,
// counters of closed windows.
package jobs
