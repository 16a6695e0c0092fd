package anthropic

import "time"

// defaultHealthModel is the model probed by HealthCheck.
const defaultHealthModel = "claude-3-5-haiku-latest"

// defaultTimeout bounds a whole request. Completions over large batches
// can take minutes.
const defaultTimeout = 120 * time.Second

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	// APIKey is used when the store holds no secret for "anthropic".
	// ANTHROPIC_API_KEY is read when both are empty.
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	HealthModel string        `yaml:"health_model"`
	Timeout     time.Duration `yaml:"timeout"`
}

// defaults fills in zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.HealthModel == "" {
		c.HealthModel = defaultHealthModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}
