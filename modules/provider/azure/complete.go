package azure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flemzord/tabllm/internal/provider"
)

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	c, err := p.client(req.APIKey)
	if err != nil {
		return provider.CompletionResponse{}, err
	}

	cr := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: req.Prompt}},
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		cr.Temperature = float32(*req.Temperature)
	}
	if req.JSONMode {
		cr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.CreateChatCompletion(ctx, cr)
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return provider.CompletionResponse{}, errors.New("azure: response has no choices")
	}
	choice := resp.Choices[0]
	return provider.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Embed implements provider.Provider.
func (p *Provider) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	c, err := p.client(req.APIKey)
	if err != nil {
		return provider.EmbeddingResponse{}, err
	}

	resp, err := c.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: req.Inputs,
		Model: openai.EmbeddingModel(req.Model),
	})
	if err != nil {
		return provider.EmbeddingResponse{}, mapError(err)
	}
	if len(resp.Data) != len(req.Inputs) {
		return provider.EmbeddingResponse{}, fmt.Errorf("azure: got %d embeddings for %d inputs", len(resp.Data), len(req.Inputs))
	}

	vectors := make([][]float64, len(req.Inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return provider.EmbeddingResponse{}, fmt.Errorf("azure: embedding index %d out of range", d.Index)
		}
		v := make([]float64, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float64(f)
		}
		vectors[d.Index] = v
	}
	return provider.EmbeddingResponse{
		Vectors: vectors,
		Usage: provider.TokenUsage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// HealthCheck lists the models visible to the resource.
func (p *Provider) HealthCheck(ctx context.Context) error {
	c, err := p.client("")
	if err != nil {
		return err
	}
	if _, err := c.ListModels(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func mapFinishReason(r openai.FinishReason) provider.FinishReason {
	switch r {
	case openai.FinishReasonLength:
		return provider.FinishReasonLength
	case openai.FinishReasonContentFilter:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}

// mapError converts go-openai errors into provider sentinels.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Message)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s", provider.ErrAuth, apiErr.Message)
		case code == "context_length_exceeded" || strings.Contains(apiErr.Message, "maximum context length"):
			return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Message)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %s", provider.ErrProviderDown, apiErr.Message)
		}
		return fmt.Errorf("azure: HTTP %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", provider.ErrRateLimit, err)
		case reqErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
		}
		return fmt.Errorf("azure: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("azure: %w", err)
}
