package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Memory is a thread-safe, in-memory ReadWriter. It starts with the default
// model catalog.
type Memory struct {
	mu      sync.RWMutex
	models  map[ModelTier]map[string]Model
	prompts map[PromptScope]map[string][]Prompt // versions in ascending order
	secrets map[string]string
	now     func() time.Time
}

// NewMemory creates a store seeded with DefaultModels.
func NewMemory() *Memory {
	m := &Memory{
		models: map[ModelTier]map[string]Model{
			TierUser:    {},
			TierDefault: {},
		},
		prompts: map[PromptScope]map[string][]Prompt{
			ScopeProject: {},
			ScopeGlobal:  {},
		},
		secrets: make(map[string]string),
		now:     time.Now,
	}
	for _, d := range defaultCatalog() {
		m.models[TierDefault][d.Name] = d
	}
	return m
}

var _ ReadWriter = (*Memory)(nil)

// ResolveModel returns the user record for name, else the default record.
func (s *Memory) ResolveModel(_ context.Context, name string) (Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tier := range []ModelTier{TierUser, TierDefault} {
		if m, ok := s.models[tier][name]; ok {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("model %q: %w", name, ErrNotFound)
}

// ResolveSecret returns the secret stored for provider.
func (s *Memory) ResolveSecret(_ context.Context, provider string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.secrets[provider]
	if !ok {
		return "", fmt.Errorf("secret for %q: %w", provider, ErrNotFound)
	}
	return secret, nil
}

// ResolvePrompt returns a prompt version, project scope first.
func (s *Memory) ResolvePrompt(_ context.Context, name string, version *int) (Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, scope := range []PromptScope{ScopeProject, ScopeGlobal} {
		versions := s.prompts[scope][name]
		if len(versions) == 0 {
			continue
		}
		if version == nil {
			return versions[len(versions)-1], nil
		}
		for _, p := range versions {
			if p.Version == *version {
				return p, nil
			}
		}
	}
	return Prompt{}, fmt.Errorf("prompt %q: %w", name, ErrNotFound)
}

// PutModel creates or replaces a model record.
func (s *Memory) PutModel(_ context.Context, m Model) error {
	if m.Tier == "" {
		m.Tier = TierUser
	}
	if err := ValidateModel(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.Tier][m.Name] = m
	return nil
}

// DeleteModel removes a user model record.
func (s *Memory) DeleteModel(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[TierUser][name]; !ok {
		return fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	delete(s.models[TierUser], name)
	return nil
}

// PutPrompt appends a new version of name in scope.
func (s *Memory) PutPrompt(_ context.Context, scope PromptScope, name, text string) (int, error) {
	if !ValidScope(scope) {
		return 0, fmt.Errorf("unknown prompt scope %q", scope)
	}
	if name == "" {
		return 0, fmt.Errorf("prompt name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.prompts[scope][name]
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}
	s.prompts[scope][name] = append(versions, Prompt{
		Name:      name,
		Version:   next,
		Text:      text,
		Scope:     scope,
		CreatedAt: s.now().UTC(),
	})
	return next, nil
}

// PutSecret creates or replaces the secret for provider.
func (s *Memory) PutSecret(_ context.Context, provider, secret string) error {
	if provider == "" {
		return fmt.Errorf("provider is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[provider] = secret
	return nil
}

// ListModels returns every record, user tier first, sorted by name.
func (s *Memory) ListModels(_ context.Context) ([]Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Model
	for _, tier := range []ModelTier{TierUser, TierDefault} {
		start := len(out)
		for _, m := range s.models[tier] {
			out = append(out, m)
		}
		slices.SortFunc(out[start:], func(a, b Model) int { return cmp.Compare(a.Name, b.Name) })
	}
	return out, nil
}

// ListPrompts returns every version, project scope first.
func (s *Memory) ListPrompts(_ context.Context) ([]Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Prompt
	for _, scope := range []PromptScope{ScopeProject, ScopeGlobal} {
		start := len(out)
		for _, versions := range s.prompts[scope] {
			out = append(out, versions...)
		}
		slices.SortFunc(out[start:], func(a, b Prompt) int {
			if c := cmp.Compare(a.Name, b.Name); c != 0 {
				return c
			}
			return cmp.Compare(a.Version, b.Version)
		})
	}
	return out, nil
}
