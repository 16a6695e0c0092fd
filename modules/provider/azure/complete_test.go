package azure

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flemzord/tabllm/internal/provider"
)

type seen struct {
	path    string
	version string
	key     string
	body    map[string]any
}

func newTestProvider(t *testing.T, status int, reply string) (*Provider, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.path = r.URL.Path
		s.version = r.URL.Query().Get("api-version")
		s.key = r.Header.Get("api-key")
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &s.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	p := &Provider{config: Config{
		APIKey:      "az-config",
		Endpoint:    srv.URL,
		APIVersion:  "2024-06-01",
		Deployments: map[string]string{"gpt-4o": "prod-gpt4o"},
	}}
	return p, s
}

func TestComplete(t *testing.T) {
	p, s := newTestProvider(t, 200, `{
		"id":"x","object":"chat.completion",
		"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}
	}`)

	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Model: "gpt-4o", Prompt: "hi", MaxTokens: 50, JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if s.path != "/openai/deployments/prod-gpt4o/chat/completions" {
		t.Errorf("path = %s", s.path)
	}
	if s.version != "2024-06-01" {
		t.Errorf("api-version = %q", s.version)
	}
	if s.key != "az-config" {
		t.Errorf("api-key = %q", s.key)
	}
	rf, _ := s.body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", s.body["response_format"])
	}
	if resp.Content != `{"ok":true}` || resp.Usage.TotalTokens != 7 || resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("resp = %+v", resp)
	}
}

func TestComplete_PerCallKeyAndUnmappedModel(t *testing.T) {
	p, s := newTestProvider(t, 200, `{"choices":[{"message":{"content":"x"},"finish_reason":"length"}]}`)
	p.config.APIKey = ""

	resp, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "gpt-35", Prompt: "hi", APIKey: "az-call"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if s.key != "az-call" {
		t.Errorf("api-key = %q, want per-call key", s.key)
	}
	if s.path != "/openai/deployments/gpt-35/chat/completions" {
		t.Errorf("path = %s", s.path)
	}
	if resp.FinishReason != provider.FinishReasonLength {
		t.Errorf("finish = %q", resp.FinishReason)
	}

	// Health checks reuse the last per-call key.
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if s.key != "az-call" || s.path != "/openai/models" {
		t.Errorf("health used key %q path %s", s.key, s.path)
	}
}

func TestComplete_NoKey(t *testing.T) {
	p, _ := newTestProvider(t, 200, `{}`)
	p.config.APIKey = ""
	_, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "m", Prompt: "hi"})
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestEmbed(t *testing.T) {
	p, s := newTestProvider(t, 200, `{
		"object":"list",
		"data":[{"object":"embedding","index":1,"embedding":[0.5]},{"object":"embedding","index":0,"embedding":[0.25]}],
		"usage":{"prompt_tokens":4,"total_tokens":4}
	}`)

	resp, err := p.Embed(context.Background(), provider.EmbeddingRequest{Model: "ada", Inputs: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if s.path != "/openai/deployments/ada/embeddings" {
		t.Errorf("path = %s", s.path)
	}
	if resp.Vectors[0][0] != 0.25 || resp.Vectors[1][0] != 0.5 {
		t.Errorf("vectors = %v, want reordered by index", resp.Vectors)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limit", 429, `{"error":{"code":"429","message":"slow"}}`, provider.ErrRateLimit},
		{"auth", 401, `{"error":{"code":"401","message":"bad key"}}`, provider.ErrAuth},
		{"context", 400, `{"error":{"code":"context_length_exceeded","message":"too long"}}`, provider.ErrContextLength},
		{"server", 503, `{"error":{"code":"503","message":"down"}}`, provider.ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProvider(t, tt.status, tt.body)
			_, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "gpt-4o", Prompt: "hi"})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMapFinishReason(t *testing.T) {
	tests := map[openai.FinishReason]provider.FinishReason{
		openai.FinishReasonStop:          provider.FinishReasonStop,
		openai.FinishReasonLength:        provider.FinishReasonLength,
		openai.FinishReasonContentFilter: provider.FinishReasonFiltering,
		"":                               provider.FinishReasonStop,
	}
	for in, want := range tests {
		if got := mapFinishReason(in); got != want {
			t.Errorf("mapFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	p := &Provider{}
	if err := p.Validate(); err == nil {
		t.Error("expected error without endpoint")
	}
	p.config.Endpoint = "https://res.openai.azure.com"
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
