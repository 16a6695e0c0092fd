// Package security holds the secret handling shared by tabllm components:
// the runtime credential cache, log redaction, request limits and the audit
// trail of the HTTP gateway.
package security

import (
	"slices"
	"sync"
)

// Credentials caches the provider secrets resolved at runtime, keyed by
// provider name. It feeds the Redactor so that no loaded secret reaches a
// log line. Safe for concurrent use.
type Credentials struct {
	mu      sync.RWMutex
	secrets map[string]string
	onSet   func()
}

// NewCredentials creates an empty cache.
func NewCredentials() *Credentials {
	return &Credentials{secrets: make(map[string]string)}
}

// OnChange registers fn to run after every Set or Delete that changes the
// cache.
func (c *Credentials) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSet = fn
}

// Set records the secret for provider. Empty secrets are ignored.
func (c *Credentials) Set(provider, secret string) {
	if secret == "" {
		return
	}
	c.mu.Lock()
	if c.secrets[provider] == secret {
		c.mu.Unlock()
		return
	}
	c.secrets[provider] = secret
	fn := c.onSet
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Get returns the cached secret for provider.
func (c *Credentials) Get(provider string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.secrets[provider]
	return v, ok
}

// Delete forgets the secret for provider.
func (c *Credentials) Delete(provider string) {
	c.mu.Lock()
	_, ok := c.secrets[provider]
	delete(c.secrets, provider)
	fn := c.onSet
	c.mu.Unlock()
	if ok && fn != nil {
		fn()
	}
}

// Providers returns the provider names with a cached secret, sorted.
func (c *Credentials) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.secrets))
	for name := range c.secrets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Values returns every cached secret in no particular order.
func (c *Credentials) Values() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make([]string, 0, len(c.secrets))
	for _, v := range c.secrets {
		values = append(values, v)
	}
	return values
}

// Track wires c to r: every change to the cache resyncs the redactor.
// The returned function has the resolver's OnSecret signature.
func Track(c *Credentials, r *Redactor) func(provider, secret string) {
	c.OnChange(func() { r.SyncCredentials(c) })
	return c.Set
}
