package gateway

import (
	"time"

	"github.com/flemzord/tabllm/internal/security"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string                   `yaml:"bind"`
	Auth            AuthConfig               `yaml:"auth"`
	RateLimits      security.RateLimitConfig `yaml:"rate_limits"`
	AuditLog        string                   `yaml:"audit_log"`
	MaxBodyBytes    int                      `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration            `yaml:"read_timeout"`
	WriteTimeout    time.Duration            `yaml:"write_timeout"`
	ShutdownTimeout time.Duration            `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults. Function calls can run
// for minutes, so the write timeout is generous.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = security.DefaultMaxBodySize
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// AuthConfig configures authentication for every endpoint but /health.
// Any configured method is accepted.
type AuthConfig struct {
	BearerToken string    `yaml:"bearer_token"`
	BasicUser   string    `yaml:"basic_user"`
	BasicPass   string    `yaml:"basic_pass"`
	JWT         JWTConfig `yaml:"jwt"`
}

// JWTConfig accepts HS256 tokens signed with Secret.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "") || a.JWT.Secret != ""
}
