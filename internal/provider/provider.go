// Package provider defines the transport contract model providers implement,
// a name-keyed registry, and health tracking with exponential backoff.
package provider

import "context"

// Provider performs single-shot model calls. Concrete implementations live
// in modules/provider/* and also implement core.Module for lifecycle
// management.
type Provider interface {
	// Complete sends one prompt and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Embed returns one vector per input, in input order. Providers without
	// an embeddings endpoint return ErrUnsupported.
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing. When a provider is in cooldown or
// dead, the registry probe calls HealthCheck to find out whether it has
// recovered.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Named is implemented by provider modules to report the provider name they
// serve ("openai", "ollama").
type Named interface {
	ProviderName() string
}
