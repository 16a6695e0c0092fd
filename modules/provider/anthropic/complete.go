package anthropic

import (
	"context"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/flemzord/tabllm/internal/provider"
)

// Complete sends a synchronous completion request to the Messages API.
func (a *Anthropic) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	params := convertRequest(req, &a.config)

	msg, err := a.client.Messages.New(ctx, params, a.keyOption(req.APIKey)...)
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	return convertResponse(msg), nil
}

// Embed implements provider.Provider.
func (a *Anthropic) Embed(context.Context, provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	return provider.EmbeddingResponse{}, fmt.Errorf("anthropic embeddings: %w", provider.ErrUnsupported)
}

// HealthCheck validates connectivity and authentication by sending a minimal
// completion request. The Anthropic API has no dedicated health endpoint,
// so a 1-token completion is the cheapest probe available.
func (a *Anthropic) HealthCheck(ctx context.Context) error {
	_, err := a.client.Messages.New(ctx, sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(a.config.HealthModel),
		MaxTokens: 1,
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock("hi")),
		},
	}, a.keyOption("")...)
	return mapError(err)
}
