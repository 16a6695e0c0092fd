package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flemzord/tabllm/internal/store"
	"github.com/flemzord/tabllm/pkg/app"
)

// withStore builds a runtime, hands its store to fn and closes it.
func withStore(g *globalFlags, fn func(ctx context.Context, s store.ReadWriter) error) error {
	rt, err := app.Build(g.params())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(context.Background(), rt.Store)
}

func modelCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage model records",
	}

	var m store.Model
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create or replace a user model record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m.Name = args[0]
			m.Tier = store.TierUser
			if err := store.ValidateModel(m); err != nil {
				return err
			}
			return withStore(g, func(ctx context.Context, s store.ReadWriter) error {
				if err := s.PutModel(ctx, m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "model %s saved (%s/%s)\n", m.Name, m.Provider, m.Model)
				return nil
			})
		},
	}
	f := add.Flags()
	f.StringVar(&m.Model, "model", "", "Provider model identifier")
	f.StringVar(&m.Provider, "provider", "", "Provider name (openai, azure, ollama, anthropic)")
	f.IntVar(&m.ContextWindow, "context-window", 0, "Context window in tokens")
	f.IntVar(&m.MaxOutputTokens, "max-output-tokens", 1024, "Maximum output tokens")
	_ = add.MarkFlagRequired("model")
	_ = add.MarkFlagRequired("provider")
	_ = add.MarkFlagRequired("context-window")

	list := &cobra.Command{
		Use:   "list",
		Short: "List model records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(g, func(ctx context.Context, s store.ReadWriter) error {
				models, err := s.ListModels(ctx)
				if err != nil {
					return err
				}
				return printModels(cmd.OutOrStdout(), models)
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a user model record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(ctx context.Context, s store.ReadWriter) error {
				if err := s.DeleteModel(ctx, args[0]); err != nil {
					return fmt.Errorf("model %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "model %s deleted\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}

func printModels(w io.Writer, models []store.Model) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIER\tPROVIDER\tMODEL\tCONTEXT\tMAX OUTPUT")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, m.Tier, m.Provider, m.Model,
			humanize.Comma(int64(m.ContextWindow)), humanize.Comma(int64(m.MaxOutputTokens)))
	}
	return tw.Flush()
}

func promptCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage stored prompts",
	}

	var (
		scope string
		file  string
	)
	add := &cobra.Command{
		Use:   "add <name> [text]",
		Short: "Append a new version of a prompt",
		Long:  "Append a new version of a prompt. The text comes from the argument, --file, or standard input.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := store.PromptScope(scope)
			if !store.ValidScope(sc) {
				return fmt.Errorf("unknown scope %q (want %q or %q)", scope, store.ScopeProject, store.ScopeGlobal)
			}
			text, err := promptText(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withStore(g, func(ctx context.Context, s store.ReadWriter) error {
				v, err := s.PutPrompt(ctx, sc, args[0], text)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "prompt %s saved as version %d (%s)\n", args[0], v, sc)
				return nil
			})
		},
	}
	add.Flags().StringVar(&scope, "scope", string(store.ScopeProject), "Prompt scope (project or global)")
	add.Flags().StringVarP(&file, "file", "f", "", "Read the prompt text from a file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored prompt versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(g, func(ctx context.Context, s store.ReadWriter) error {
				prompts, err := s.ListPrompts(ctx)
				if err != nil {
					return err
				}
				return printPrompts(cmd.OutOrStdout(), prompts)
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func promptText(args []string, file string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case len(args) == 2 && file != "":
		return "", fmt.Errorf("give the prompt text either as an argument or with --file")
	case len(args) == 2:
		text = args[1]
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		text = string(b)
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		text = string(b)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("prompt text is empty")
	}
	return text, nil
}

func printPrompts(w io.Writer, prompts []store.Prompt) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tNAME\tVERSION\tCREATED\tTEXT")
	for _, p := range prompts {
		created := "-"
		if !p.CreatedAt.IsZero() {
			created = humanize.Time(p.CreatedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.Scope, p.Name, p.Version, created, preview(p.Text, 48))
	}
	return tw.Flush()
}

// preview returns the first line of s, cut to n runes.
func preview(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func secretCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage provider secrets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider>",
		Short: "Store the API key of a provider, read from standard input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return err
			}
			secret := strings.TrimSpace(line)
			if secret == "" {
				return fmt.Errorf("secret is empty")
			}
			return withStore(g, func(ctx context.Context, s store.ReadWriter) error {
				if err := s.PutSecret(ctx, args[0], secret); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "secret for %s saved\n", args[0])
				return nil
			})
		},
	})
	return cmd
}
