// Package anthropic implements the provider.anthropic module on the
// Anthropic Messages API. Anthropic has no embeddings endpoint, so Embed
// reports provider.ErrUnsupported.
package anthropic

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/provider"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module            = (*Anthropic)(nil)
	_ core.Configurable      = (*Anthropic)(nil)
	_ core.Provisioner       = (*Anthropic)(nil)
	_ core.Validator         = (*Anthropic)(nil)
	_ provider.Provider      = (*Anthropic)(nil)
	_ provider.HealthChecker = (*Anthropic)(nil)
	_ provider.Named         = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger

	// lastKey is the most recent per-call key, reused by HealthCheck.
	lastKey atomic.Pointer[string]
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// ProviderName implements provider.Named.
func (a *Anthropic) ProviderName() string { return "anthropic" }

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	return node.Decode(&a.config)
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	apiKey := a.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}
	// The model gateway owns retries.
	opts = append(opts, option.WithMaxRetries(0), option.WithRequestTimeout(a.config.Timeout))

	client := sdkanthropic.NewClient(opts...)
	a.client = &client
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	if a.config.MaxTokens < 0 {
		return fmt.Errorf("provider.anthropic: max_tokens must be positive, got %d", a.config.MaxTokens)
	}
	if a.config.Timeout < 0 {
		return fmt.Errorf("provider.anthropic: timeout must be positive, got %s", a.config.Timeout)
	}
	return nil
}

// keyOption returns the per-call key option. Calls without a key reuse the
// last one seen; when none was seen the client's own key applies.
func (a *Anthropic) keyOption(apiKey string) []option.RequestOption {
	if apiKey != "" {
		a.lastKey.Store(&apiKey)
		return []option.RequestOption{option.WithAPIKey(apiKey)}
	}
	if a.config.APIKey == "" {
		if k := a.lastKey.Load(); k != nil {
			return []option.RequestOption{option.WithAPIKey(*k)}
		}
	}
	return nil
}
