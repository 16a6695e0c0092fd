// Package probe implements the health.probe module: scheduled health checks
// for providers in cooldown or dead, plus periodic store maintenance when
// the configured store supports it.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/cron"
	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/store"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Disabled turns a schedule off.
const Disabled = "off"

// Config holds the probe schedules.
type Config struct {
	Schedule            string        `yaml:"schedule"`
	MaintenanceSchedule string        `yaml:"maintenance_schedule"`
	Timeout             time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = "@every 30s"
	}
	if c.MaintenanceSchedule == "" {
		c.MaintenanceSchedule = "@hourly"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Module is the health.probe module.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "health.probe",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	return node.Decode(&m.config)
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	var errs []error
	for name, expr := range map[string]string{
		"schedule":             m.config.Schedule,
		"maintenance_schedule": m.config.MaintenanceSchedule,
	} {
		if expr == Disabled {
			continue
		}
		if err := cron.ParseSchedule(expr); err != nil {
			errs = append(errs, fmt.Errorf("health.probe: %s: %w", name, err))
		}
	}
	if m.config.Timeout < 0 {
		errs = append(errs, errors.New("health.probe: timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Start implements core.Starter. The provider registry and the store are
// looked up here since both are registered after module provisioning.
func (m *Module) Start() error {
	s, err := m.build()
	if err != nil {
		return err
	}
	if len(s.Jobs()) == 0 {
		m.logger.Info("health.probe: nothing to schedule")
		return nil
	}
	m.scheduler = s
	return s.Start()
}

func (m *Module) build() (*cron.Scheduler, error) {
	s := cron.NewScheduler(m.logger, m.config.Timeout)

	if m.config.Schedule != Disabled {
		reg, ok := core.ServiceAs[*provider.Registry](m.appCtx, provider.ServiceName)
		if !ok {
			return nil, errors.New("health.probe: provider registry not available")
		}
		if err := s.RegisterJob(&cron.ProbeJob{Prober: reg, Logger: m.logger, ScheduleExpr: m.config.Schedule}); err != nil {
			return nil, err
		}
	}

	if m.config.MaintenanceSchedule != Disabled {
		if target, ok := core.ServiceAs[cron.Maintainer](m.appCtx, store.ServiceName); ok {
			if err := s.RegisterJob(&cron.MaintenanceJob{Target: target, ScheduleExpr: m.config.MaintenanceSchedule}); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	s := m.scheduler
	m.scheduler = nil
	return s.Stop(ctx)
}
