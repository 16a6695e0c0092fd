package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/store"
	"github.com/flemzord/tabllm/internal/telemetry"
)

// Lookup is the part of the configuration store the resolver reads.
type Lookup interface {
	ResolveModel(ctx context.Context, name string) (store.Model, error)
	ResolveSecret(ctx context.Context, provider string) (string, error)
}

// Options tunes the gateways a Resolver builds.
type Options struct {
	// CallTimeout bounds each provider call. Default: 60s.
	CallTimeout time.Duration

	// MaxAttempts is the number of tries for transient provider errors.
	// 1 disables retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the first retry delay. Default: 500ms.
	InitialBackoff time.Duration

	// OnSecret is told about every secret a resolution loads, so it can be
	// registered for log redaction.
	OnSecret func(provider, secret string)

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

func (o *Options) defaults() {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Tracer == nil {
		o.Tracer = telemetry.Tracer("model")
	}
}

// Resolver turns model details into bound gateways.
type Resolver struct {
	lookup   Lookup
	registry *provider.Registry
	opts     Options
}

// NewResolver creates a resolver reading records from lookup and providers
// from registry.
func NewResolver(lookup Lookup, registry *provider.Registry, opts Options) *Resolver {
	opts.defaults()
	return &Resolver{lookup: lookup, registry: registry, opts: opts}
}

// Resolve parses model details, merges them over the stored record, loads the
// provider secret and binds the provider. A non-empty providerOverride
// replaces the provider after merging.
func (r *Resolver) Resolve(ctx context.Context, raw json.RawMessage, providerOverride string) (*Gateway, error) {
	d, err := ParseDetails(raw)
	if err != nil {
		return nil, err
	}
	if providerOverride != "" {
		d.Provider = &providerOverride
	}
	return r.ResolveDetails(ctx, d)
}

// ResolveEmbedding resolves a bare model name, as taken by the embedding
// function.
func (r *Resolver) ResolveEmbedding(ctx context.Context, name, providerOverride string) (*Gateway, error) {
	if name == "" {
		return nil, fault.Validationf("model name is required")
	}
	d := Details{Name: name}
	if providerOverride != "" {
		d.Provider = &providerOverride
	}
	return r.ResolveDetails(ctx, d)
}

// ResolveDetails resolves already-parsed details.
func (r *Resolver) ResolveDetails(ctx context.Context, d Details) (*Gateway, error) {
	stored, err := r.lookup.ResolveModel(ctx, d.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fault.Configf("model %q not found", d.Name)
		}
		return nil, fmt.Errorf("resolving model %q: %w", d.Name, err)
	}

	cfg := Merge(stored, d)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entry, err := r.registry.Get(cfg.Provider)
	if err != nil {
		return nil, fault.Configf("unsupported provider %q for model %q", cfg.Provider, cfg.Name)
	}

	secret, err := r.lookup.ResolveSecret(ctx, cfg.Provider)
	switch {
	case errors.Is(err, store.ErrNotFound):
		secret = ""
	case err != nil:
		return nil, fmt.Errorf("resolving secret for %q: %w", cfg.Provider, err)
	}
	cfg.Secret = secret
	if secret != "" && r.opts.OnSecret != nil {
		r.opts.OnSecret(cfg.Provider, secret)
	}

	r.opts.Logger.Debug("model resolved",
		"model_name", cfg.Name,
		"model", cfg.Model,
		"provider", cfg.Provider,
		"context_window", cfg.ContextWindow,
	)

	return newGateway(cfg, entry, r.opts), nil
}
