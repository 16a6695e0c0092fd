package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/tabllm/internal/mcpserver"
	"github.com/flemzord/tabllm/pkg/app"
)

func mcpCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the functions as MCP tools over stdio",
		Long: `Serve every function as an MCP tool on standard input and output.
Logs go to standard error. Background modules such as the HTTP gateway are
not started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := g.params()
			params.LogOutput = os.Stderr
			rt, err := app.Build(params)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcpserver.New(rt.Engine, version, rt.Logger.With("component", "mcp"))
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
