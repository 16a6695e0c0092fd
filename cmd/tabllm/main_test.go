package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/tabllm/internal/config"
	"github.com/flemzord/tabllm/internal/store"
	"github.com/flemzord/tabllm/pkg/app"
)

func TestReadArgs(t *testing.T) {
	dir := t.TempDir()
	rowsPath := filepath.Join(dir, "rows.json")
	if err := os.WriteFile(rowsPath, []byte(" [{\"a\":1}]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readArgs([]string{`{"model_name":"m"}`, "@" + rowsPath, "-"}, strings.NewReader(`{"prompt":"p"}`))
	if err != nil {
		t.Fatalf("readArgs: %v", err)
	}
	want := []string{`{"model_name":"m"}`, `[{"a":1}]`, `{"prompt":"p"}`}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("arg %d = %s, want %s", i, got[i], want[i])
		}
	}

	tests := []struct {
		name string
		args []string
	}{
		{"invalid json", []string{"{nope"}},
		{"stdin twice", []string{"-", "-"}},
		{"missing file", []string{"@" + filepath.Join(dir, "missing.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readArgs(tt.args, strings.NewReader("1")); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRenderConfig(t *testing.T) {
	a := defaultAnswers()
	a.Providers = []string{"openai", "ollama"}
	t.Setenv("TABLLM_TOKEN", "tok")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")

	data, err := renderConfig(a)
	if err != nil {
		t.Fatalf("renderConfig: %v", err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		t.Fatalf("rendered config does not parse: %v\n%s", err, data)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("rendered config is invalid: %v\n%s", err, data)
	}
	for _, id := range []string{"provider.openai", "provider.ollama", "store.sqlite", "gateway.http", "health.probe"} {
		if _, ok := cfg.Modules[id]; !ok {
			t.Errorf("module %s missing", id)
		}
	}

	a.Providers = nil
	if _, err := renderConfig(a); err == nil {
		t.Error("expected error without providers")
	}
	a.Providers = []string{"openai"}
	a.Store = "postgres"
	if _, err := renderConfig(a); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestInit_Yes(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cfg", "tabllm.yaml")
	root := rootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"init", "--yes", "--output", out, "--env-file", ""})
	if err := root.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	root = rootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"init", "--yes", "--output", out, "--env-file", ""})
	if err := root.Execute(); err == nil {
		t.Error("expected error when the file exists")
	}
}

func TestAdminCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tabllm.yaml")
	cfg := "version: \"1\"\nengine:\n  tokenizer:\n    kind: chars\nmodules:\n  store.sqlite: {}\n  provider.ollama: {}\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	run := func(stdin string, args ...string) string {
		t.Helper()
		root := rootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetIn(strings.NewReader(stdin))
		root.SetArgs(append([]string{"--config", cfgPath, "--data-dir", dir, "--env-file", "", "--log-level", "error"}, args...))
		if err := root.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	run("", "model", "add", "local", "--model", "llama3", "--provider", "ollama", "--context-window", "8192")
	if out := run("", "model", "list"); !strings.Contains(out, "local") || !strings.Contains(out, "8,192") {
		t.Errorf("model list = %s", out)
	}

	run("Summarize {{rows}}\n", "prompt", "add", "summarizer")
	if out := run("", "prompt", "add", "summarizer", "Summarize again"); !strings.Contains(out, "version 2") {
		t.Errorf("prompt add = %s", out)
	}
	if out := run("", "prompt", "list"); strings.Count(out, "summarizer") != 2 {
		t.Errorf("prompt list = %s", out)
	}

	run("sk-test-secret\n", "secret", "set", "openai")
	run("", "model", "rm", "local")

	rt, err := app.Build(app.Params{ConfigPath: cfgPath, DataDir: dir, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()
	ctx := t.Context()
	if got, err := rt.Store.ResolveSecret(ctx, "openai"); err != nil || got != "sk-test-secret" {
		t.Errorf("secret = %q, %v", got, err)
	}
	if _, err := rt.Store.ResolveModel(ctx, "local"); err == nil {
		t.Error("model local should be deleted")
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := preview("a very long line of text", 10); len([]rune(got)) != 10 {
		t.Errorf("got %q", got)
	}
	if got := preview("first\nsecond", 20); got != "first …" {
		t.Errorf("got %q", got)
	}
}

func TestPrintPrompts_Created(t *testing.T) {
	var buf bytes.Buffer
	err := printPrompts(&buf, []store.Prompt{
		{Name: "p", Version: 1, Scope: store.ScopeGlobal, Text: "x", CreatedAt: time.Now().Add(-2 * time.Hour)},
		{Name: "q", Version: 1, Scope: store.ScopeProject, Text: "y"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "2 hours ago") {
		t.Errorf("output = %s", buf.String())
	}
}
