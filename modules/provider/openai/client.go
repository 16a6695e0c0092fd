package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/tabllm/internal/provider"
)

// maxResponseSize is the maximum response body size (10 MB).
// Protects against OOM from malformed or huge responses.
const maxResponseSize = 10 * 1024 * 1024

// newHTTPRequest creates an authenticated HTTP request for the OpenAI API.
// A per-call key wins over the configured one; calls without either reuse
// the last per-call key, so health probes authenticate like real traffic.
func (p *Provider) newHTTPRequest(ctx context.Context, method, path, apiKey string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("openai: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}

	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	switch {
	case apiKey != "":
		p.lastKey.Store(&apiKey)
	case p.config.APIKey != "":
		apiKey = p.config.APIKey
	default:
		if k := p.lastKey.Load(); k != nil {
			apiKey = *k
		}
	}
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if p.config.Organization != "" {
		httpReq.Header.Set("OpenAI-Organization", p.config.Organization)
	}

	return httpReq, nil
}

// do sends a request and decodes a 2xx JSON body into out. The response
// body is limited to maxResponseSize bytes.
func (p *Provider) do(ctx context.Context, method, path, apiKey string, payload, out any) error {
	httpReq, err := p.newHTTPRequest(ctx, method, path, apiKey, payload)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("openai: read response: %w", err)
	}

	if httpErr := mapHTTPError(resp.StatusCode, body); httpErr != nil {
		return httpErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("openai: unmarshal response: %w", err)
	}
	return nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	var resp chatResponse
	if err := p.do(ctx, http.MethodPost, "/chat/completions", req.APIKey, toChatRequest(req), &resp); err != nil {
		return provider.CompletionResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return provider.CompletionResponse{}, fmt.Errorf("openai: response has no choices")
	}
	return fromChatResponse(&resp), nil
}

// Embed implements provider.Provider.
func (p *Provider) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	var resp embeddingResponse
	payload := embeddingRequest{Model: req.Model, Input: req.Inputs}
	if err := p.do(ctx, http.MethodPost, "/embeddings", req.APIKey, payload, &resp); err != nil {
		return provider.EmbeddingResponse{}, err
	}
	if len(resp.Data) != len(req.Inputs) {
		return provider.EmbeddingResponse{}, fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(req.Inputs))
	}
	return fromEmbeddingResponse(&resp), nil
}

// HealthCheck lists models, which exercises authentication without
// spending tokens.
func (p *Provider) HealthCheck(ctx context.Context) error {
	return p.do(ctx, http.MethodGet, "/models", "", nil, nil)
}
