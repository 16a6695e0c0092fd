package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// nopHandler is a slog.Handler that discards all log records.
// Enabled returns false so slog skips formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Entry is a registered provider with its health tracker.
type Entry struct {
	Name     string
	Provider Provider
	Health   *HealthTracker
}

// RegistryOption configures optional Registry behavior.
type RegistryOption func(*Registry)

// WithLogger injects a structured logger into the Registry.
// When nil or omitted, all log output is discarded.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithHealthConfig sets the health tracking parameters applied to every
// provider registered afterwards.
func WithHealthConfig(cfg HealthConfig) RegistryOption {
	return func(r *Registry) { r.health = cfg }
}

// WithClock replaces time.Now in the health trackers of providers
// registered afterwards.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// Registry maps provider names to providers. It is populated once at
// startup and read concurrently afterwards.
type Registry struct {
	logger *slog.Logger
	health HealthConfig
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{entries: make(map[string]*Entry)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(nopHandler{})
	}
	return r
}

// Register adds p under name. Registering a name twice is an error.
func (r *Registry) Register(name string, p Provider) error {
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if p == nil {
		return fmt.Errorf("provider %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}

	e := &Entry{Name: name, Provider: p, Health: NewHealthTracker(r.health)}
	if r.now != nil {
		e.Health.now = r.now
	}
	logger := r.logger
	e.Health.onStateChange = func(from, to HealthState) {
		switch to {
		case StateCooldown:
			logger.Warn("provider entered cooldown",
				"provider", name,
				"backoff", e.Health.CurrentBackoff(),
				"failures", e.Health.Failures(),
			)
		case StateDead:
			logger.Error("provider marked dead",
				"provider", name,
				"total_failures", e.Health.Failures(),
			)
		case StateHealthy:
			logger.Info("provider revived",
				"provider", name,
				"previous_state", from.String(),
			)
		}
	}
	r.entries[name] = e
	return nil
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return e, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Report returns the health status of every provider, keyed by name.
func (r *Registry) Report() map[string]HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]HealthStatus, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.Health.Status()
	}
	return out
}

// Probe health-checks every provider whose tracker asks for it and records
// the successes. It returns the number of providers probed.
func (r *Registry) Probe(ctx context.Context) int {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	probed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if !e.Health.ShouldHealthCheck() {
			continue
		}
		checker, ok := e.Provider.(HealthChecker)
		if !ok {
			continue
		}
		probed++
		if err := checker.HealthCheck(ctx); err != nil {
			r.logger.Debug("provider health check failed", "provider", e.Name, "error", err)
			continue
		}
		e.Health.RecordSuccess()
	}
	return probed
}

// ServiceName is the AppContext service name the registry registers under.
const ServiceName = "provider.registry"
