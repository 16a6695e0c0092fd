// Package main is the entry point for the tabllm CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that builds a runtime.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	envFile    string
}

func (g *globalFlags) params() app.Params {
	return app.Params{ConfigPath: g.configPath, DataDir: g.dataDir, LogLevel: g.logLevel}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "tabllm",
		Short:         "Run LLM functions over table rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(g.envFile)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file")
	pf.StringVar(&g.dataDir, "data-dir", "", "Persistent data directory")
	pf.StringVar(&g.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	pf.StringVar(&g.envFile, "env-file", ".env", "Environment file loaded before the configuration")

	root.AddCommand(
		versionCmd(),
		serveCmd(g),
		configCmd(g),
		initCmd(),
		callCmd(g),
		modelCmd(g),
		promptCmd(g),
		secretCmd(g),
		serviceCmd(g),
		mcpCmd(g),
	)
	return root
}

// loadDotEnv loads environment variables from path. A missing file is not
// an error so that .env files remain optional.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tabllm %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start every configured module and serve until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(g.params())
		},
	}
}

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := g.params()
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			rt, err := app.Build(params)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			mods := rt.App.Modules()
			fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", rt.ConfigPath, len(mods))
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ModuleInfo().ID)
			}
			fmt.Fprintf(out, "Providers: %v\n", rt.Providers.Names())
			return nil
		},
	})
	return cmd
}
