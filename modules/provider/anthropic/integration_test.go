//go:build integration

package anthropic

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/provider"
)

func TestIntegration_Complete(t *testing.T) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		t.Skip("ANTHROPIC_API_KEY not set, skipping integration test")
	}

	a := &Anthropic{}
	if err := a.Provision(core.NewAppContext(nil, t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := a.Complete(ctx, provider.CompletionRequest{
		Model:     defaultHealthModel,
		Prompt:    "Say exactly: hello",
		MaxTokens: 10,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty content")
	}
	t.Logf("Response: %q (tokens: %+v)", resp.Content, resp.Usage)
}
