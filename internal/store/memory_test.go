package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemory_ResolveModel_Tiers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	got, err := s.ResolveModel(ctx, "gpt-4o")
	if err != nil {
		t.Fatalf("ResolveModel: %v", err)
	}
	if got.Tier != TierDefault || got.Provider != "openai" {
		t.Errorf("got %+v, want default openai record", got)
	}

	override := Model{Name: "gpt-4o", Model: "gpt-4o-2024-08-06", Provider: "azure", ContextWindow: 1000, MaxOutputTokens: 100}
	if err := s.PutModel(ctx, override); err != nil {
		t.Fatalf("PutModel: %v", err)
	}

	got, err = s.ResolveModel(ctx, "gpt-4o")
	if err != nil {
		t.Fatalf("ResolveModel: %v", err)
	}
	if got.Tier != TierUser || got.Provider != "azure" {
		t.Errorf("user record should shadow default, got %+v", got)
	}

	if err := s.DeleteModel(ctx, "gpt-4o"); err != nil {
		t.Fatalf("DeleteModel: %v", err)
	}
	got, _ = s.ResolveModel(ctx, "gpt-4o")
	if got.Tier != TierDefault {
		t.Errorf("after delete got tier %q, want default", got.Tier)
	}
}

func TestMemory_ResolveModel_NotFound(t *testing.T) {
	s := NewMemory()
	if _, err := s.ResolveModel(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteModel(context.Background(), "gpt-4o"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting a default record: err = %v, want ErrNotFound", err)
	}
}

func TestMemory_PutModel_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		model Model
	}{
		{"missing name", Model{Model: "m", Provider: "p", ContextWindow: 1, MaxOutputTokens: 1}},
		{"missing provider", Model{Name: "n", Model: "m", ContextWindow: 1, MaxOutputTokens: 1}},
		{"zero context", Model{Name: "n", Model: "m", Provider: "p", MaxOutputTokens: 1}},
		{"zero max output", Model{Name: "n", Model: "m", Provider: "p", ContextWindow: 1}},
		{"bad tier", Model{Name: "n", Model: "m", Provider: "p", ContextWindow: 1, MaxOutputTokens: 1, Tier: "team"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewMemory().PutModel(context.Background(), tt.model); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMemory_PromptVersions(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	for _, text := range []string{"v1", "v2", "v3"} {
		if _, err := s.PutPrompt(ctx, ScopeGlobal, "summarizer", text); err != nil {
			t.Fatalf("PutPrompt: %v", err)
		}
	}

	latest, err := s.ResolvePrompt(ctx, "summarizer", nil)
	if err != nil {
		t.Fatalf("ResolvePrompt: %v", err)
	}
	if latest.Version != 3 || latest.Text != "v3" {
		t.Errorf("latest = %+v, want version 3", latest)
	}

	two := 2
	p, err := s.ResolvePrompt(ctx, "summarizer", &two)
	if err != nil {
		t.Fatalf("ResolvePrompt v2: %v", err)
	}
	if p.Text != "v2" {
		t.Errorf("v2 text = %q", p.Text)
	}

	nine := 9
	if _, err := s.ResolvePrompt(ctx, "summarizer", &nine); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing version: err = %v, want ErrNotFound", err)
	}
}

func TestMemory_PromptScopeShadowing(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if _, err := s.PutPrompt(ctx, ScopeGlobal, "p", "global"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutPrompt(ctx, ScopeProject, "p", "project"); err != nil {
		t.Fatal(err)
	}

	got, err := s.ResolvePrompt(ctx, "p", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scope != ScopeProject || got.Text != "project" {
		t.Errorf("got %+v, want project prompt", got)
	}

	if _, err := s.PutPrompt(ctx, "team", "p", "x"); err == nil {
		t.Error("unknown scope should fail")
	}
}

func TestMemory_Secrets(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if _, err := s.ResolveSecret(ctx, "openai"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.PutSecret(ctx, "openai", "sk-test"); err != nil {
		t.Fatal(err)
	}
	got, err := s.ResolveSecret(ctx, "openai")
	if err != nil || got != "sk-test" {
		t.Errorf("ResolveSecret = %q, %v", got, err)
	}
}

func TestMemory_Lists(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if err := s.PutModel(ctx, Model{Name: "zz", Model: "m", Provider: "ollama", ContextWindow: 10, MaxOutputTokens: 5}); err != nil {
		t.Fatal(err)
	}
	models, err := s.ListModels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != len(DefaultModels)+1 {
		t.Fatalf("len = %d, want %d", len(models), len(DefaultModels)+1)
	}
	if models[0].Name != "zz" || models[0].Tier != TierUser {
		t.Errorf("first model = %+v, want user record first", models[0])
	}

	_, _ = s.PutPrompt(ctx, ScopeGlobal, "b", "x")
	_, _ = s.PutPrompt(ctx, ScopeGlobal, "a", "x")
	_, _ = s.PutPrompt(ctx, ScopeGlobal, "a", "y")
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range prompts {
		got = append(got, p.Name)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "a" || got[2] != "b" {
		t.Errorf("prompt order = %v", got)
	}
	if prompts[1].Version != 2 {
		t.Errorf("second entry version = %d, want 2", prompts[1].Version)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.PutPrompt(ctx, ScopeGlobal, "p", "text")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.ResolvePrompt(ctx, "p", nil)
		}()
	}
	wg.Wait()

	p, err := s.ResolvePrompt(ctx, "p", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Version != 20 {
		t.Errorf("version = %d, want 20", p.Version)
	}
}
