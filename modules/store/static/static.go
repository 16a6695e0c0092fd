// Package static provides a store module whose catalog is declared inline
// in the YAML configuration. Records live in memory; writes made at runtime
// through the gateway are lost on restart.
package static

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/store"
)

func init() {
	core.RegisterModule(&Module{})
}

// PromptConfig declares one prompt. Versions lists successive texts;
// Text is shorthand for a single version.
type PromptConfig struct {
	Name     string            `yaml:"name"`
	Scope    store.PromptScope `yaml:"scope"`
	Text     string            `yaml:"text"`
	Versions []string          `yaml:"versions"`
}

// Config is the store.static configuration.
type Config struct {
	Models  []store.Model     `yaml:"models"`
	Prompts []PromptConfig    `yaml:"prompts"`
	Secrets map[string]string `yaml:"secrets"`
}

// Module is the store.static module.
type Module struct {
	config Config
	mem    *store.Memory
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.static",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("static: decode config: %w", err)
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	var errs []error
	for i, p := range m.config.Prompts {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("static: prompts[%d]: name is required", i))
		}
		if p.Text != "" && len(p.Versions) > 0 {
			errs = append(errs, fmt.Errorf("static: prompt %q: text and versions are exclusive", p.Name))
		}
	}
	return errors.Join(errs...)
}

// Provision implements core.Provisioner. It loads the declared records
// into a fresh store.Memory and registers it under store.ServiceName.
func (m *Module) Provision(ctx *core.AppContext) error {
	mem, err := Build(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.mem = mem
	ctx.RegisterService(store.ServiceName, mem)
	ctx.Logger.Info("static store provisioned",
		"models", len(m.config.Models),
		"prompts", len(m.config.Prompts),
		"secrets", len(m.config.Secrets),
	)
	return nil
}

// Build returns a store.Memory holding the default catalog plus cfg.
func Build(ctx context.Context, cfg Config) (*store.Memory, error) {
	mem := store.NewMemory()
	for _, model := range cfg.Models {
		if err := mem.PutModel(ctx, model); err != nil {
			return nil, fmt.Errorf("static: model %q: %w", model.Name, err)
		}
	}
	for _, p := range cfg.Prompts {
		scope := p.Scope
		if scope == "" {
			scope = store.ScopeProject
		}
		texts := p.Versions
		if p.Text != "" {
			texts = []string{p.Text}
		}
		for _, text := range texts {
			if _, err := mem.PutPrompt(ctx, scope, p.Name, text); err != nil {
				return nil, fmt.Errorf("static: prompt %q: %w", p.Name, err)
			}
		}
	}
	for provider, secret := range cfg.Secrets {
		if err := mem.PutSecret(ctx, provider, secret); err != nil {
			return nil, fmt.Errorf("static: secret %q: %w", provider, err)
		}
	}
	return mem, nil
}
