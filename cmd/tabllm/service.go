package main

import (
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/tabllm/pkg/app"
)

// program adapts a tabllm runtime to the service manager.
type program struct {
	params app.Params
	rt     *app.Runtime
}

var _ service.Interface = (*program)(nil)

// Start must not block: the runtime's modules run their own goroutines.
func (p *program) Start(_ service.Service) error {
	rt, err := app.Build(p.params)
	if err != nil {
		return err
	}
	if err := rt.App.Start(); err != nil {
		rt.Close()
		return err
	}
	p.rt = rt
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.rt != nil {
		p.rt.App.Stop()
		p.rt = nil
	}
	return nil
}

// serviceConfig pins the config path so the service does not depend on the
// working directory it is launched from.
func serviceConfig(params app.Params) (*service.Config, error) {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if params.DataDir != "" {
		abs, err := filepath.Abs(params.DataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	return &service.Config{
		Name:        "tabllm",
		DisplayName: "tabllm",
		Description: "LLM functions over table rows, served over HTTP.",
		Arguments:   args,
	}, nil
}

func serviceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install or control tabllm as a system service",
	}

	newService := func() (service.Service, error) {
		params := g.params()
		cfg, err := serviceConfig(params)
		if err != nil {
			return nil, err
		}
		return service.New(&program{params: params}, cfg)
	}

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := newService()
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}
