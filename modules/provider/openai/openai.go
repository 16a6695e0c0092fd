// Package openai implements the provider.openai module: OpenAI Chat
// Completions and Embeddings over plain HTTP. Any server speaking the same
// API can be targeted through base_url.
package openai

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/provider"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ provider.Named         = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider implements the OpenAI API as a tabllm provider module.
type Provider struct {
	config Config
	logger *slog.Logger
	client *http.Client

	lastKey atomic.Pointer[string]
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// ProviderName implements provider.Named.
func (p *Provider) ProviderName() string { return "openai" }

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	return node.Decode(&p.config)
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.client = &http.Client{Timeout: p.config.parsedTimeout()}
	return nil
}

// Validate implements core.Validator. The API key may come from the store
// at call time, so it is not required here.
func (p *Provider) Validate() error {
	return p.config.validateTimeout()
}
