// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for tabllm.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/tokenizer"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Only "1" is supported.
	Version string `yaml:"version"`

	// Engine tunes the function engine shared by every surface.
	Engine EngineConfig `yaml:"engine"`

	// Logging selects the log level and format.
	Logging LoggingConfig `yaml:"logging"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.openai").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// EngineConfig holds the settings of the function engine.
type EngineConfig struct {
	Tokenizer tokenizer.Config `yaml:"tokenizer"`

	// Workers caps concurrent model calls within one function call.
	Workers int `yaml:"workers"`

	// EmbeddingBatchSize is the number of inputs per embeddings request.
	EmbeddingBatchSize int `yaml:"embedding_batch_size"`

	// CallTimeout bounds every provider call.
	CallTimeout time.Duration `yaml:"call_timeout"`

	Retry RetryConfig `yaml:"retry"`

	// Health tunes provider failure tracking.
	Health provider.HealthConfig `yaml:"health"`
}

// RetryConfig controls retries of transient provider errors.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

// LoggingConfig selects the log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level"`

	// Format is text or json. Default: text.
	Format string `yaml:"format"`
}

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Defaults fills zero values.
func (c *Config) Defaults() {
	e := &c.Engine
	e.Tokenizer.Defaults()
	if e.Workers <= 0 {
		e.Workers = 4
	}
	if e.EmbeddingBatchSize <= 0 {
		e.EmbeddingBatchSize = 64
	}
	if e.CallTimeout <= 0 {
		e.CallTimeout = 60 * time.Second
	}
	if e.Retry.MaxAttempts <= 0 {
		e.Retry.MaxAttempts = 3
	}
	if e.Retry.InitialBackoff <= 0 {
		e.Retry.InitialBackoff = 500 * time.Millisecond
	}
	e.Health.Defaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = FormatText
	}
}
