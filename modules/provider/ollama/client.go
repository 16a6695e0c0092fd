package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/tabllm/internal/provider"
)

const maxResponseSize = 10 * 1024 * 1024

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	Format    string         `json:"format,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
}

type chatResponse struct {
	Message         chatMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

type apiError struct {
	Error string `json:"error"`
}

// Complete implements provider.Provider with a non-streaming /api/chat call.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	cr := chatRequest{
		Model:     req.Model,
		Messages:  []chatMessage{{Role: "user", Content: req.Prompt}},
		Options:   buildOptions(req),
		KeepAlive: p.config.KeepAlive,
	}
	if req.JSONMode {
		cr.Format = "json"
	}

	var resp chatResponse
	if err := p.do(ctx, http.MethodPost, "/api/chat", cr, &resp); err != nil {
		return provider.CompletionResponse{}, err
	}

	finish := provider.FinishReasonStop
	if resp.DoneReason == "length" {
		finish = provider.FinishReasonLength
	}
	return provider.CompletionResponse{
		Content:      resp.Message.Content,
		FinishReason: finish,
		Usage: provider.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// buildOptions maps request fields onto Ollama model options.
func buildOptions(req provider.CompletionRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// Embed implements provider.Provider with one batched /api/embed call.
func (p *Provider) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	var resp embedResponse
	payload := embedRequest{Model: req.Model, Input: req.Inputs, KeepAlive: p.config.KeepAlive}
	if err := p.do(ctx, http.MethodPost, "/api/embed", payload, &resp); err != nil {
		return provider.EmbeddingResponse{}, err
	}
	if len(resp.Embeddings) != len(req.Inputs) {
		return provider.EmbeddingResponse{}, fmt.Errorf("ollama: got %d embeddings for %d inputs", len(resp.Embeddings), len(req.Inputs))
	}
	return provider.EmbeddingResponse{
		Vectors: resp.Embeddings,
		Usage:   provider.TokenUsage{PromptTokens: resp.PromptEvalCount, TotalTokens: resp.PromptEvalCount},
	}, nil
}

// HealthCheck lists local models; it succeeds when the server is reachable.
func (p *Provider) HealthCheck(ctx context.Context) error {
	return p.do(ctx, http.MethodGet, "/api/tags", nil, nil)
}

func (p *Provider) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ollama: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("ollama: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("ollama: read response: %w", err)
	}
	if err := mapHTTPError(resp.StatusCode, raw); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ollama: unmarshal response: %w", err)
	}
	return nil
}

// mapHTTPError maps an Ollama error response onto provider sentinels.
func mapHTTPError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := string(body)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", provider.ErrAuth, msg)
	case strings.Contains(msg, "context length") || strings.Contains(msg, "exceeds maximum context"):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	case status >= 500:
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, msg)
	default:
		return fmt.Errorf("ollama: HTTP %d: %s", status, msg)
	}
}

func mapConnectionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("ollama: %w", err)
}
