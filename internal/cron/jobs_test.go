package cron_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flemzord/tabllm/internal/cron"
	"github.com/flemzord/tabllm/internal/cron/crontest"
)

func TestProbeJob(t *testing.T) {
	t.Parallel()

	p := &crontest.MockProber{Recovered: 2}
	j := &cron.ProbeJob{Prober: p}

	if j.Name() != "provider_probe" || j.Schedule() != "@every 30s" {
		t.Errorf("job = %s %s", j.Name(), j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.Probes() != 1 {
		t.Errorf("probes = %d, want 1", p.Probes())
	}

	j.ScheduleExpr = "@every 5s"
	if j.Schedule() != "@every 5s" {
		t.Errorf("schedule override ignored: %s", j.Schedule())
	}
}

func TestProbeJob_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j := &cron.ProbeJob{Prober: &crontest.MockProber{}}
	if err := j.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMaintenanceJob(t *testing.T) {
	t.Parallel()

	boom := errors.New("checkpoint failed")
	target := &crontest.MockProber{MaintainErr: boom}
	j := &cron.MaintenanceJob{Target: target}

	if j.Schedule() != "@hourly" {
		t.Errorf("schedule = %s", j.Schedule())
	}
	if err := j.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if target.Maintenances() != 1 {
		t.Errorf("maintenances = %d", target.Maintenances())
	}
}
