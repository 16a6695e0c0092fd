package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flemzord/tabllm/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Provider{
		config: Config{BaseURL: srv.URL, KeepAlive: "5m"},
		client: srv.Client(),
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

func TestComplete(t *testing.T) {
	temp := 0.0
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		req := readBody[chatRequest](t, r)
		if req.Stream {
			t.Error("stream should be false")
		}
		if req.Format != "json" {
			t.Errorf("format = %q, want json", req.Format)
		}
		if req.KeepAlive != "5m" {
			t.Errorf("keep_alive = %q", req.KeepAlive)
		}
		if req.Options["num_predict"] != float64(64) || req.Options["temperature"] != float64(0) {
			t.Errorf("options = %v", req.Options)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message:         chatMessage{Role: "assistant", Content: `{"a":1}`},
			DoneReason:      "stop",
			PromptEvalCount: 7,
			EvalCount:       3,
		})
	}))

	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Model: "llama3", Prompt: "hi", MaxTokens: 64, Temperature: &temp, JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"a":1}` || resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestComplete_LengthAndNoOptions(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := readBody[chatRequest](t, r)
		if req.Options != nil || req.Format != "" {
			t.Errorf("unexpected options %v / format %q", req.Options, req.Format)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "trunc"}, DoneReason: "length"})
	}))

	resp, err := p.Complete(context.Background(), provider.CompletionRequest{Model: "llama3", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.FinishReason != provider.FinishReasonLength {
		t.Errorf("finish = %q", resp.FinishReason)
	}
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		req := readBody[embedRequest](t, r)
		if len(req.Input) != 2 {
			t.Errorf("input = %v", req.Input)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 0}, {0, 1}}, PromptEvalCount: 4})
	}))

	resp, err := p.Embed(context.Background(), provider.EmbeddingRequest{Model: "nomic", Inputs: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(resp.Vectors) != 2 || resp.Vectors[1][1] != 1 {
		t.Errorf("vectors = %v", resp.Vectors)
	}
	if resp.Usage.PromptTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1}}})
	}))
	if _, err := p.Embed(context.Background(), provider.EmbeddingRequest{Model: "m", Inputs: []string{"a", "b"}}); err == nil {
		t.Fatal("expected error on count mismatch")
	}
}

func TestHealthCheck(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tags" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestHealthCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := &Provider{config: Config{BaseURL: url}, client: http.DefaultClient}
	err := p.HealthCheck(context.Background())
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("err = %v, want ErrProviderDown", err)
	}
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limit", 429, `{"error":"slow down"}`, provider.ErrRateLimit},
		{"auth", 401, `{"error":"unauthorized"}`, provider.ErrAuth},
		{"context", 400, `{"error":"input length exceeds maximum context length"}`, provider.ErrContextLength},
		{"server", 500, `{"error":"model crashed"}`, provider.ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapHTTPError(tt.status, []byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := mapHTTPError(404, []byte(`{"error":"model \"x\" not found"}`)); err == nil || errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("404 err = %v, want plain error", err)
	}
	if err := mapHTTPError(200, nil); err != nil {
		t.Errorf("200 err = %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		name string
		env  string
		in   string
		want string
	}{
		{"default", "", "", "http://localhost:11434"},
		{"env host", "gpu-box:11434", "", "http://gpu-box:11434"},
		{"explicit wins", "gpu-box:11434", "https://ollama.internal/", "https://ollama.internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OLLAMA_HOST", tt.env)
			c := Config{BaseURL: tt.in}
			c.defaults()
			if c.BaseURL != tt.want {
				t.Errorf("BaseURL = %q, want %q", c.BaseURL, tt.want)
			}
			if c.Timeout == 0 {
				t.Error("timeout not defaulted")
			}
		})
	}
}
