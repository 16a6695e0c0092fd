// Package otlp implements the telemetry.otlp module, which exports traces
// over OTLP/HTTP for the lifetime of the application.
package otlp

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/telemetry"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the telemetry.otlp module.
type Module struct {
	config   telemetry.OTLPConfig
	logger   *slog.Logger
	shutdown func(context.Context) error
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otlp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	return node.Decode(&m.config)
}

// Provision implements core.Provisioner. The exporter is installed here so
// spans from other modules' Start are captured.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.Defaults()
	m.logger = ctx.Logger
	if err := m.Validate(); err != nil {
		return err
	}

	shutdown, err := telemetry.SetupOTLP(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.shutdown = shutdown
	m.logger.Info("otlp trace export enabled", "endpoint", m.config.Endpoint, "service", m.config.ServiceName)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if strings.Contains(m.config.Endpoint, "://") {
		return errors.New("telemetry.otlp: endpoint is host:port, without a scheme")
	}
	return nil
}

// Stop implements core.Stopper and flushes pending spans.
func (m *Module) Stop(ctx context.Context) error {
	if m.shutdown == nil {
		return nil
	}
	fn := m.shutdown
	m.shutdown = nil
	return fn(ctx)
}
