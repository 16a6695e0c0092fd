// Package cron runs periodic background jobs: provider health probes and
// store maintenance.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. Names are unique per scheduler.
	Name() string

	// Schedule is a 5-field cron expression ("*/5 * * * *") or a
	// descriptor ("@every 30s", "@hourly").
	Schedule() string

	// Run executes one tick. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}
