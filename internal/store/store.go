// Package store defines the configuration lookups tabllm consumes: model
// records, provider secrets and versioned prompts.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested model, prompt or secret does not exist.
var ErrNotFound = errors.New("store: not found")

// ModelTier is the lookup tier a model record lives in. User records shadow
// default records with the same name.
type ModelTier string

const (
	TierUser    ModelTier = "user"
	TierDefault ModelTier = "default"
)

// PromptScope is the lookup tier a prompt lives in. Project prompts shadow
// global prompts with the same name.
type PromptScope string

const (
	ScopeProject PromptScope = "project"
	ScopeGlobal  PromptScope = "global"
)

// Model is a stored model record keyed by Name.
type Model struct {
	Name            string    `json:"model_name" yaml:"model_name"`
	Model           string    `json:"model" yaml:"model"`
	Provider        string    `json:"provider" yaml:"provider"`
	ContextWindow   int       `json:"context_window" yaml:"context_window"`
	MaxOutputTokens int       `json:"max_output_tokens" yaml:"max_output_tokens"`
	Tier            ModelTier `json:"tier,omitempty" yaml:"tier,omitempty"`
}

// Prompt is one version of a named prompt.
type Prompt struct {
	Name      string      `json:"name"`
	Version   int         `json:"version"`
	Text      string      `json:"text"`
	Scope     PromptScope `json:"scope"`
	CreatedAt time.Time   `json:"created_at"`
}

// Repository resolves configuration by key. Implementations must be safe for
// concurrent use.
type Repository interface {
	// ResolveModel returns the user record for name, else the default record.
	ResolveModel(ctx context.Context, name string) (Model, error)

	// ResolveSecret returns the secret stored for a provider.
	ResolveSecret(ctx context.Context, provider string) (string, error)

	// ResolvePrompt returns the given version of a prompt, or the highest
	// version when version is nil. Project scope is searched before global.
	ResolvePrompt(ctx context.Context, name string, version *int) (Prompt, error)
}

// Writer mutates a store.
type Writer interface {
	// PutModel creates or replaces a model record. An empty tier means user.
	PutModel(ctx context.Context, m Model) error

	// DeleteModel removes a user model record.
	DeleteModel(ctx context.Context, name string) error

	// PutPrompt appends a new version of a prompt and returns its number.
	PutPrompt(ctx context.Context, scope PromptScope, name, text string) (int, error)

	// PutSecret creates or replaces the secret for a provider.
	PutSecret(ctx context.Context, provider, secret string) error

	// ListModels returns every model record, user tier first, sorted by name.
	ListModels(ctx context.Context) ([]Model, error)

	// ListPrompts returns every prompt version sorted by scope, name and version.
	ListPrompts(ctx context.Context) ([]Prompt, error)
}

// ReadWriter is a Repository that can also be written to.
type ReadWriter interface {
	Repository
	Writer
}

// ServiceName is the AppContext service name stores register under.
const ServiceName = "store.repository"

// ValidateModel checks the fields a stored record must carry.
func ValidateModel(m Model) error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("model_name is required"))
	}
	if m.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if m.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if m.ContextWindow <= 0 {
		errs = append(errs, errors.New("context_window must be positive"))
	}
	if m.MaxOutputTokens <= 0 {
		errs = append(errs, errors.New("max_output_tokens must be positive"))
	}
	switch m.Tier {
	case "", TierUser, TierDefault:
	default:
		errs = append(errs, errors.New("tier must be user or default"))
	}
	return errors.Join(errs...)
}

// ValidScope reports whether s is a known prompt scope.
func ValidScope(s PromptScope) bool {
	return s == ScopeProject || s == ScopeGlobal
}
