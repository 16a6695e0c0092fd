package cron

import (
	"context"
	"log/slog"
)

// Prober health-checks the providers that are due for it and returns how
// many recovered. *provider.Registry satisfies it.
type Prober interface {
	Probe(ctx context.Context) int
}

// ProbeJob periodically probes unhealthy providers so that they return to
// service without waiting for live traffic.
type ProbeJob struct {
	Prober       Prober
	Logger       *slog.Logger
	ScheduleExpr string // default "@every 30s"
}

var _ Job = (*ProbeJob)(nil)

func (j *ProbeJob) Name() string { return "provider_probe" }

func (j *ProbeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 30s"
}

func (j *ProbeJob) Run(ctx context.Context) error {
	if n := j.Prober.Probe(ctx); n > 0 && j.Logger != nil {
		j.Logger.Info("cron: providers recovered", "count", n)
	}
	return ctx.Err()
}

// Maintainer performs periodic upkeep on a store (WAL checkpoints,
// statistics).
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// MaintenanceJob runs store upkeep.
type MaintenanceJob struct {
	Target       Maintainer
	ScheduleExpr string // default "@hourly"
}

var _ Job = (*MaintenanceJob)(nil)

func (j *MaintenanceJob) Name() string { return "store_maintenance" }

func (j *MaintenanceJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@hourly"
}

func (j *MaintenanceJob) Run(ctx context.Context) error {
	return j.Target.Maintain(ctx)
}
