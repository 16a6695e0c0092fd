// Package azure implements the provider.azure module: Azure OpenAI chat and
// embedding deployments through the go-openai client.
package azure

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/provider"
)

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ provider.Named         = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

const defaultAPIVersion = "2024-06-01"

// Config holds the Azure OpenAI provider configuration.
type Config struct {
	APIKey string `yaml:"api_key"`
	// Endpoint is the resource URL, e.g. https://my-res.openai.azure.com.
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	// Deployments maps model identifiers to deployment names. Models not
	// listed are used as the deployment name directly.
	Deployments map[string]string `yaml:"deployments"`
	Timeout     time.Duration     `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
}

// Provider is the provider.azure module.
type Provider struct {
	config Config
	logger *slog.Logger
	httpc  *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client
	lastKey atomic.Pointer[string]
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.azure",
		New: func() core.Module { return &Provider{} },
	}
}

// ProviderName implements provider.Named.
func (p *Provider) ProviderName() string { return "azure" }

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	return node.Decode(&p.config)
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.httpc = &http.Client{Timeout: p.config.Timeout}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if p.config.Endpoint == "" {
		return errors.New("provider.azure: endpoint is required")
	}
	if p.config.Timeout < 0 {
		return fmt.Errorf("provider.azure: invalid timeout %s", p.config.Timeout)
	}
	return nil
}

// deployment maps a model identifier to its Azure deployment name.
func (p *Provider) deployment(model string) string {
	if d, ok := p.config.Deployments[model]; ok {
		return d
	}
	return model
}

// client returns a go-openai client bound to the effective key. Clients are
// cached per key since the key is part of the client config.
func (p *Provider) client(callKey string) (*openai.Client, error) {
	key := callKey
	switch {
	case key != "":
		p.lastKey.Store(&key)
	case p.config.APIKey != "":
		key = p.config.APIKey
	default:
		if last := p.lastKey.Load(); last != nil {
			key = *last
		}
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no Azure OpenAI API key configured", provider.ErrAuth)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	cfg := openai.DefaultAzureConfig(key, p.config.Endpoint)
	cfg.APIVersion = p.config.APIVersion
	cfg.AzureModelMapperFunc = p.deployment
	if p.httpc != nil {
		cfg.HTTPClient = p.httpc
	}
	c := openai.NewClientWithConfig(cfg)
	if p.clients == nil {
		p.clients = make(map[string]*openai.Client)
	}
	p.clients[key] = c
	return c, nil
}
