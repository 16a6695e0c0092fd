package provider

import (
	"sync"
	"time"
)

// HealthState represents the current availability state of a provider.
type HealthState int

const (
	StateHealthy  HealthState = iota
	StateCooldown             // transient failure, backing off
	StateDead                 // too many consecutive failures
)

// String returns a human-readable label for the health state.
func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateCooldown:
		return "cooldown"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthConfig controls health tracking behavior.
type HealthConfig struct {
	// InitialBackoff is the cooldown duration after the first failure.
	// Default: 1s.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the exponential backoff duration.
	// Default: 60s.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxFailures is the number of consecutive failures before the
	// provider is marked dead. A dead provider is tried again once
	// MaxBackoff has elapsed since its last failure. Default: 5.
	MaxFailures int `yaml:"max_failures"`
}

// Defaults fills zero-value fields with sensible defaults.
func (c *HealthConfig) Defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
}

// HealthStatus is a point-in-time view of a tracker.
type HealthStatus struct {
	State         HealthState
	Failures      int
	Backoff       time.Duration
	CooldownUntil time.Time
}

// HealthTracker monitors the availability of a single provider.
// It implements exponential backoff on failures and marks the
// provider dead after MaxFailures consecutive failures. Dead is not
// terminal: after MaxBackoff one request is let through again.
type HealthTracker struct {
	cfg HealthConfig

	// onStateChange is called outside the lock whenever the health
	// state transitions. It keeps the tracker decoupled from logging.
	onStateChange func(from, to HealthState)

	mu              sync.Mutex
	state           HealthState
	failures        int
	currentBackoff  time.Duration
	cooldownExpires time.Time

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewHealthTracker creates a healthy tracker with the given config.
func NewHealthTracker(cfg HealthConfig) *HealthTracker {
	cfg.Defaults()
	return &HealthTracker{
		cfg:   cfg,
		state: StateHealthy,
		now:   time.Now,
	}
}

// IsAvailable reports whether the provider can accept requests.
// A provider in cooldown or dead becomes available once its backoff
// expires.
func (h *HealthTracker) IsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateHealthy {
		return true
	}
	return !h.now().Before(h.cooldownExpires)
}

// RecordSuccess resets the tracker to the healthy state.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	prev := h.state
	h.state = StateHealthy
	h.failures = 0
	h.currentBackoff = 0
	h.mu.Unlock()

	if prev != StateHealthy && h.onStateChange != nil {
		h.onStateChange(prev, StateHealthy)
	}
}

// RecordFailure records a failed request. It transitions the tracker
// to cooldown (with exponential backoff) or dead after MaxFailures.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	prev := h.state
	h.failures++

	var newState HealthState
	if h.failures >= h.cfg.MaxFailures {
		newState = StateDead
		h.currentBackoff = h.cfg.MaxBackoff
		h.cooldownExpires = h.now().Add(h.cfg.MaxBackoff)
	} else {
		newState = StateCooldown
		if h.currentBackoff == 0 {
			h.currentBackoff = h.cfg.InitialBackoff
		} else {
			h.currentBackoff *= 2
		}
		if h.currentBackoff > h.cfg.MaxBackoff {
			h.currentBackoff = h.cfg.MaxBackoff
		}
		h.cooldownExpires = h.now().Add(h.currentBackoff)
	}
	h.state = newState
	h.mu.Unlock()

	if prev != newState && h.onStateChange != nil {
		h.onStateChange(prev, newState)
	}
}

// ShouldHealthCheck reports whether the provider needs an active
// health probe. This is true for dead and cooldown-expired providers.
func (h *HealthTracker) ShouldHealthCheck() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateDead:
		return true
	case StateCooldown:
		return !h.now().Before(h.cooldownExpires)
	default:
		return false
	}
}

// State returns the current health state.
func (h *HealthTracker) State() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Failures returns the current consecutive failure count.
func (h *HealthTracker) Failures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures
}

// CurrentBackoff returns the current backoff duration.
func (h *HealthTracker) CurrentBackoff() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentBackoff
}

// Status returns a consistent snapshot of the tracker.
func (h *HealthTracker) Status() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := HealthStatus{State: h.state, Failures: h.failures, Backoff: h.currentBackoff}
	if h.state != StateHealthy {
		st.CooldownUntil = h.cooldownExpires
	}
	return st
}
