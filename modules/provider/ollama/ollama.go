// Package ollama implements the provider.ollama module against a local or
// remote Ollama server: POST /api/chat, POST /api/embed and GET /api/tags
// for health.
package ollama

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

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
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Config holds the Ollama provider configuration.
type Config struct {
	// BaseURL defaults to $OLLAMA_HOST, then http://localhost:11434.
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// KeepAlive is passed through to Ollama ("5m", "-1").
	KeepAlive string `yaml:"keep_alive"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if !strings.Contains(c.BaseURL, "://") {
		c.BaseURL = "http://" + c.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
}

// Provider is the provider.ollama module.
type Provider struct {
	config Config
	logger *slog.Logger
	client *http.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.ollama",
		New: func() core.Module { return &Provider{} },
	}
}

// ProviderName implements provider.Named.
func (p *Provider) ProviderName() string { return "ollama" }

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	return node.Decode(&p.config)
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.client = &http.Client{Timeout: p.config.Timeout}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	u, err := url.Parse(p.config.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("provider.ollama: invalid base_url %q", p.config.BaseURL)
	}
	if p.config.Timeout < 0 {
		return errors.New("provider.ollama: timeout must be positive")
	}
	return nil
}
