package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/tabllm/internal/functions"
	"github.com/flemzord/tabllm/pkg/app"
)

func callCmd(g *globalFlags) *cobra.Command {
	var (
		timeout time.Duration
		compact bool
	)
	cmd := &cobra.Command{
		Use:   "call <function> <arg>...",
		Short: "Call one function and print its JSON result",
		Long: `Call one function with positional JSON arguments.

Each argument is a JSON value, @path to read it from a file, or - to read
it from standard input. Example:

  tabllm call llm_complete '{"model_name":"gpt-4o"}' '{"prompt":"Translate to French"}' @rows.json`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveDefault
			}
			var names []string
			for _, s := range functions.Signatures() {
				names = append(names, s.Name+"\t"+s.Description)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fnArgs, err := readArgs(args[1:], cmd.InOrStdin())
			if err != nil {
				return err
			}

			rt, err := app.Build(g.params())
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			out, err := rt.Engine.Call(ctx, args[0], fnArgs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out, !compact)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Bound the whole call (0 = no bound)")
	cmd.Flags().BoolVar(&compact, "compact", false, "Print the result on one line")
	return cmd
}

// readArgs turns command-line arguments into raw JSON values.
func readArgs(args []string, stdin io.Reader) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(args))
	usedStdin := false
	for i, a := range args {
		var raw []byte
		switch {
		case a == "-":
			if usedStdin {
				return nil, errors.New("standard input can only be read once")
			}
			usedStdin = true
			b, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			raw = b
		case strings.HasPrefix(a, "@"):
			b, err := os.ReadFile(a[1:])
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
			raw = b
		default:
			raw = []byte(a)
		}
		raw = bytes.TrimSpace(raw)
		if !json.Valid(raw) {
			return nil, fmt.Errorf("argument %d is not valid JSON", i+1)
		}
		out = append(out, raw)
	}
	return out, nil
}

func printJSON(w io.Writer, raw json.RawMessage, indent bool) error {
	if indent {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			raw = buf.Bytes()
		}
	}
	_, err := fmt.Fprintf(w, "%s\n", raw)
	return err
}
