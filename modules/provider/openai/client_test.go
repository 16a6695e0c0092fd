package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Provider{
		config: Config{APIKey: "sk-config", BaseURL: srv.URL},
		client: srv.Client(),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readBody[T any](t *testing.T, r *http.Request) T {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	return v
}

func TestComplete_Success(t *testing.T) {
	temp := 0.2
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-call" {
			t.Errorf("Authorization = %q, want per-call key", got)
		}
		req := readBody[chatRequest](t, r)
		if req.Model != "gpt-4o" || req.MaxTokens != 100 {
			t.Errorf("request = %+v", req)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature = %v", req.Temperature)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "hello" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.ResponseFormat != nil {
			t.Error("response_format set without JSON mode")
		}
		stop := "stop"
		writeJSON(t, w, chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "hi"}, FinishReason: &stop}},
			Usage:   usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
		})
	}))

	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Model: "gpt-4o", Prompt: "hello", MaxTokens: 100, Temperature: &temp, APIKey: "sk-call",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hi" || resp.FinishReason != provider.FinishReasonStop || resp.Usage.TotalTokens != 4 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestComplete_JSONMode(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := readBody[chatRequest](t, r)
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v", req.ResponseFormat)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-config" {
			t.Errorf("Authorization = %q, want config key", got)
		}
		writeJSON(t, w, chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: `{"a":1}`}}}})
	}))
	resp, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "m", Prompt: "p", JSONMode: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"a":1}` {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, chatResponse{})
	}))
	if _, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "m", Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestComplete_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "rate limit", status: 429, body: `{"error":{"message":"slow down"}}`, want: provider.ErrRateLimit},
		{name: "unauthorized", status: 401, body: `{"error":{"message":"bad key"}}`, want: provider.ErrAuth},
		{name: "forbidden", status: 403, body: `nope`, want: provider.ErrAuth},
		{name: "context length", status: 400, body: `{"error":{"message":"too long","code":"context_length_exceeded"}}`, want: provider.ErrContextLength},
		{name: "server error", status: 503, body: `{"error":{"message":"overloaded"}}`, want: provider.ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "m", Prompt: "p"})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestComplete_OtherStatus(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	_, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "m", Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "HTTP 418") {
		t.Errorf("err = %v", err)
	}
	if provider.IsRetryable(err) {
		t.Error("418 should not be retryable")
	}
}

func TestComplete_ContextCanceled(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Complete(ctx, provider.CompletionRequest{Model: "m", Prompt: "p"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		req := readBody[embeddingRequest](t, r)
		if req.Model != "text-embedding-3-small" || len(req.Input) != 2 {
			t.Errorf("request = %+v", req)
		}
		writeJSON(t, w, embeddingResponse{
			Data: []embeddingData{
				{Index: 1, Embedding: []float64{2, 2}},
				{Index: 0, Embedding: []float64{1, 1}},
			},
			Usage: usage{PromptTokens: 4, TotalTokens: 4},
		})
	}))
	resp, err := p.Embed(context.Background(), provider.EmbeddingRequest{
		Model:  "text-embedding-3-small",
		Inputs: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(resp.Vectors) != 2 || resp.Vectors[0][0] != 1 || resp.Vectors[1][0] != 2 {
		t.Errorf("vectors = %v, want ordered by index", resp.Vectors)
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, embeddingResponse{Data: []embeddingData{{Embedding: []float64{1}}}})
	}))
	if _, err := p.Embed(context.Background(), provider.EmbeddingRequest{Model: "m", Inputs: []string{"a", "b"}}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestHealthCheck_ReusesLastKey(t *testing.T) {
	var gotAuth []string
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		if r.URL.Path == "/models" {
			if r.Method != http.MethodGet {
				t.Errorf("method = %s", r.Method)
			}
			writeJSON(t, w, map[string]any{"data": []any{}})
			return
		}
		writeJSON(t, w, chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "x"}}}})
	}))
	p.config.APIKey = ""

	if _, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "m", Prompt: "p", APIKey: "sk-store"}); err != nil {
		t.Fatal(err)
	}
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if len(gotAuth) != 2 || gotAuth[1] != "Bearer sk-store" {
		t.Errorf("auth headers = %v", gotAuth)
	}
}

func TestModule_Lifecycle(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("timeout: 5s\norganization: org-1\n"), &node); err != nil {
		t.Fatal(err)
	}
	p := &Provider{}
	if err := p.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := p.Provision(core.NewAppContext(nil, t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.config.BaseURL != "https://api.openai.com/v1" || p.client.Timeout != 5*time.Second {
		t.Errorf("config = %+v, timeout %v", p.config, p.client.Timeout)
	}
	if p.ProviderName() != "openai" {
		t.Errorf("ProviderName = %q", p.ProviderName())
	}

	bad := &Provider{config: Config{Timeout: "soon"}}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid timeout error")
	}
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limit", 429, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`, provider.ErrRateLimit},
		{"quota", 429, `{"error":{"message":"no credit","type":"insufficient_quota","code":"insufficient_quota"}}`, errQuota},
		{"auth", 401, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, provider.ErrAuth},
		{"context code", 400, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, provider.ErrContextLength},
		{"context message", 400, `{"error":{"message":"This model's maximum context length is 8192 tokens"}}`, provider.ErrContextLength},
		{"server", 503, `upstream unavailable`, provider.ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapHTTPError(tt.status, []byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := mapHTTPError(404, []byte(`{"error":{"message":"model not found"}}`)); err == nil ||
		errors.Is(err, provider.ErrProviderDown) || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("404 err = %v", err)
	}
	if err := mapHTTPError(204, nil); err != nil {
		t.Errorf("2xx err = %v", err)
	}
}
