// Package tokenizer counts tokens for prompt text so batches can be sized
// against a model's context window.
package tokenizer

import (
	"fmt"
	"strings"
)

// Counter returns the number of tokens text occupies. Implementations are
// pure and deterministic for a given encoding.
type Counter interface {
	CountTokens(text string) int
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(text string) int

// CountTokens implements Counter.
func (f CounterFunc) CountTokens(text string) int { return f(text) }

// Kinds accepted by Config.Kind.
const (
	KindChars    = "chars"
	KindTiktoken = "tiktoken"
)

// Config selects the counter built at startup.
type Config struct {
	// Kind is "tiktoken" (default) or "chars".
	Kind string `yaml:"kind"`

	// Encoding is the BPE encoding for tiktoken ("cl100k_base",
	// "o200k_base"). Ignored when Model is set.
	Encoding string `yaml:"encoding"`

	// Model picks the encoding registered for a model name ("gpt-4o").
	Model string `yaml:"model"`

	// CharsPerToken is the ratio for the chars counter. Defaults to 4.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Kind == "" {
		c.Kind = KindTiktoken
	}
	if c.Kind == KindTiktoken && c.Encoding == "" && c.Model == "" {
		c.Encoding = DefaultEncoding
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = 4.0
	}
}

// New builds the configured counter. Loading failures are returned here so
// they surface at startup rather than on a call.
func New(cfg Config) (Counter, error) {
	cfg.Defaults()
	switch strings.ToLower(cfg.Kind) {
	case KindChars:
		return NewCharCounter(cfg.CharsPerToken), nil
	case KindTiktoken:
		if cfg.Model != "" {
			return NewTiktokenForModel(cfg.Model)
		}
		return NewTiktoken(cfg.Encoding)
	default:
		return nil, fmt.Errorf("tokenizer: unknown kind %q (want %q or %q)", cfg.Kind, KindTiktoken, KindChars)
	}
}

// CharCounter estimates tokens from a characters-per-token ratio.
// About 4 works for English, about 3 for other Latin languages.
type CharCounter struct {
	CharsPerToken float64
}

// NewCharCounter creates a CharCounter. A ratio <= 0 defaults to 4.
func NewCharCounter(charsPerToken float64) *CharCounter {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharCounter{CharsPerToken: charsPerToken}
}

// CountTokens implements Counter. Non-empty text always counts at least one
// token and the estimate rounds up.
func (c *CharCounter) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/c.CharsPerToken) + 1
}
