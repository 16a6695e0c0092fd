// Package app builds a tabllm runtime from a configuration file. It is the
// shared entry point of the CLI commands.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/tabllm/internal/config"
	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/functions"
	"github.com/flemzord/tabllm/internal/model"
	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/security"
	"github.com/flemzord/tabllm/internal/store"
	"github.com/flemzord/tabllm/internal/telemetry"
	"github.com/flemzord/tabllm/internal/tokenizer"
)

// Params configures a runtime.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel overrides logging.level from the config when non-empty.
	LogLevel string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Runtime is a loaded application: every configured module provisioned
// and validated, and the function engine wired over them. Modules are not
// started until Start or Run.
type Runtime struct {
	App        *core.App
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Engine     *functions.Engine
	Providers  *provider.Registry
	Store      store.ReadWriter
	Metrics    *prometheus.Registry
}

// Build loads the configuration and wires a runtime. Call Close (or Run)
// to release module resources.
func Build(params Params) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if params.LogLevel != "" {
		cfg.Logging.Level = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	logger, err := newLogger(cfg.Logging, params.LogOutput, redactor)
	if err != nil {
		return nil, err
	}

	counter, err := tokenizer.New(cfg.Engine.Tokenizer)
	if err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(telemetry.RegistryService, reg)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, err
	}

	providers, err := buildRegistry(application, cfg.Engine.Health, logger)
	if err != nil {
		application.Close()
		return nil, err
	}
	appCtx.RegisterService(provider.ServiceName, providers)

	repo := resolveStore(appCtx, logger)

	creds := security.NewCredentials()
	resolver := model.NewResolver(repo, providers, model.Options{
		CallTimeout:    cfg.Engine.CallTimeout,
		MaxAttempts:    cfg.Engine.Retry.MaxAttempts,
		InitialBackoff: cfg.Engine.Retry.InitialBackoff,
		OnSecret:       security.Track(creds, redactor),
		Logger:         logger.With("component", "model"),
		Metrics:        metrics,
	})

	engine := functions.New(resolver, repo, counter, functions.Config{
		Workers:            cfg.Engine.Workers,
		EmbeddingBatchSize: cfg.Engine.EmbeddingBatchSize,
	}, functions.WithLogger(logger.With("component", "functions")), functions.WithMetrics(metrics))
	appCtx.RegisterService(functions.ServiceName, engine)

	return &Runtime{
		App:        application,
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
		Engine:     engine,
		Providers:  providers,
		Store:      repo,
		Metrics:    reg,
	}, nil
}

// Run builds the runtime, starts every module and blocks until SIGINT or
// SIGTERM.
func Run(params Params) error {
	rt, err := Build(params)
	if err != nil {
		return err
	}
	rt.Logger.Info("tabllm starting", "config", rt.ConfigPath, "providers", rt.Providers.Names())
	return rt.App.Run()
}

// Close releases the modules of a runtime that was never run.
func (rt *Runtime) Close() {
	rt.App.Close()
}

func newLogger(cfg config.LoggingConfig, out io.Writer, redactor *security.Redactor) (*slog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch cfg.Format {
	case config.FormatJSON:
		inner = slog.NewJSONHandler(out, opts)
	case config.FormatText, "":
		inner = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/tabllm/tabllm.yaml → ~/.config/tabllm/tabllm.yaml → ./tabllm.yaml
func ResolveConfigPath() (string, error) {
	candidates := ConfigCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// ConfigCandidates returns the config search path in priority order.
func ConfigCandidates() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "tabllm", "tabllm.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "tabllm", "tabllm.yaml"))
	}
	return append(candidates, "tabllm.yaml")
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/tabllm if set, otherwise ~/.local/share/tabllm per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "tabllm")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tabllm")
}
