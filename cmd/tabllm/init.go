package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/pkg/app"
)

// wizardAnswers holds what the init wizard collected.
type wizardAnswers struct {
	Providers []string
	Store     string
	Gateway   bool
	Bind      string
	Probe     bool
	Tokenizer string
}

func defaultAnswers() wizardAnswers {
	return wizardAnswers{
		Providers: []string{"openai"},
		Store:     "sqlite",
		Gateway:   true,
		Bind:      "127.0.0.1:8080",
		Probe:     true,
		Tokenizer: "tiktoken",
	}
}

// providerBlocks are the module configs written for each provider. Keys
// default to empty so they may come from stored secrets instead.
var providerBlocks = map[string]map[string]any{
	"openai":    {"api_key": "${OPENAI_API_KEY:-}"},
	"azure":     {"api_key": "${AZURE_OPENAI_API_KEY:-}", "endpoint": "${AZURE_OPENAI_ENDPOINT}"},
	"ollama":    {"base_url": "${OLLAMA_HOST:-http://localhost:11434}"},
	"anthropic": {"api_key": "${ANTHROPIC_API_KEY:-}"},
}

func initCmd() *cobra.Command {
	var (
		output string
		yes    bool
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = app.ConfigCandidates()[0]
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if !yes {
				if err := runWizard(&answers); err != nil {
					return err
				}
			}
			data, err := renderConfig(answers)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
			if answers.Gateway {
				fmt.Fprintln(cmd.OutOrStdout(), "Set TABLLM_TOKEN before running `tabllm serve`.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the configuration")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the defaults without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func runWizard(a *wizardAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Model providers").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Azure OpenAI", "azure"),
					huh.NewOption("Ollama", "ollama"),
					huh.NewOption("Anthropic", "anthropic"),
				).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return errors.New("pick at least one provider")
					}
					return nil
				}).
				Value(&a.Providers),
			huh.NewSelect[string]().
				Title("Configuration store").
				Options(
					huh.NewOption("SQLite file in the data directory", "sqlite"),
					huh.NewOption("Inline in this file", "static"),
					huh.NewOption("In memory (lost on exit)", "memory"),
				).
				Value(&a.Store),
			huh.NewSelect[string]().
				Title("Token counter").
				Options(
					huh.NewOption("tiktoken (cl100k_base)", "tiktoken"),
					huh.NewOption("Character estimate", "chars"),
				).
				Value(&a.Tokenizer),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Serve the functions over HTTP?").Value(&a.Gateway),
			huh.NewInput().Title("Listen address").Value(&a.Bind),
			huh.NewConfirm().Title("Probe unhealthy providers in the background?").Value(&a.Probe),
		),
	)
	return form.Run()
}

// renderConfig produces the YAML for a. Map keys are sorted by the encoder.
func renderConfig(a wizardAnswers) ([]byte, error) {
	if len(a.Providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	modules := map[string]any{}
	for _, p := range a.Providers {
		block, ok := providerBlocks[p]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", p)
		}
		modules["provider."+p] = block
	}

	switch a.Store {
	case "sqlite":
		modules["store.sqlite"] = map[string]any{}
	case "static":
		modules["store.static"] = map[string]any{"models": []any{}, "prompts": []any{}}
	case "memory", "":
	default:
		return nil, fmt.Errorf("unknown store %q", a.Store)
	}

	if a.Gateway {
		modules["gateway.http"] = map[string]any{
			"bind": a.Bind,
			"auth": map[string]any{"bearer_token": "${TABLLM_TOKEN}"},
		}
	}
	if a.Probe {
		modules["health.probe"] = map[string]any{"schedule": "@every 30s"}
	}

	doc := map[string]any{
		"version": "1",
		"engine": map[string]any{
			"tokenizer": map[string]any{"kind": a.Tokenizer},
			"workers":   4,
		},
		"logging": map[string]any{"level": "info", "format": "text"},
		"modules": modules,
	}
	return yaml.Marshal(doc)
}
