package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/tokenizer"
)

// Validate checks the structural validity of a Config: the version, that
// every module ID is registered, that at least one provider module is
// configured and at most one store module, and the engine and logging
// settings. All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Version {
	case "":
		errs = append(errs, errors.New("config: version field is required"))
	case "1":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	var providers, stores []string
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		switch core.ModuleID(id).Namespace() {
		case "provider":
			providers = append(providers, id)
		case "store":
			stores = append(stores, id)
		}
	}
	if len(providers) == 0 {
		errs = append(errs, errors.New("config: at least one provider module must be configured"))
	}
	if len(stores) > 1 {
		errs = append(errs, fmt.Errorf("config: only one store module may be configured, got %s", strings.Join(stores, ", ")))
	}

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateEngine(e *EngineConfig) []error {
	var errs []error
	switch strings.ToLower(e.Tokenizer.Kind) {
	case "", tokenizer.KindTiktoken, tokenizer.KindChars:
	default:
		errs = append(errs, fmt.Errorf("config: engine.tokenizer.kind %q must be %q or %q",
			e.Tokenizer.Kind, tokenizer.KindTiktoken, tokenizer.KindChars))
	}
	if e.Workers < 0 {
		errs = append(errs, errors.New("config: engine.workers must not be negative"))
	}
	if e.EmbeddingBatchSize < 0 {
		errs = append(errs, errors.New("config: engine.embedding_batch_size must not be negative"))
	}
	if e.CallTimeout < 0 {
		errs = append(errs, errors.New("config: engine.call_timeout must not be negative"))
	}
	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error
	if _, err := ParseLevel(l.Level); err != nil {
		errs = append(errs, err)
	}
	switch l.Format {
	case "", FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("config: logging.format %q must be %q or %q", l.Format, FormatText, FormatJSON))
	}
	return errs
}

// ParseLevel maps a logging.level value onto a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: logging.level %q: %w", s, err)
	}
	return lvl, nil
}
