package provider

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

func newTracker(cfg HealthConfig) (*HealthTracker, *fakeClock) {
	h := NewHealthTracker(cfg)
	clock := &fakeClock{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	h.now = clock.Now
	return h, clock
}

func TestHealthTracker_CooldownAndExpiry(t *testing.T) {
	t.Parallel()
	h, clock := newTracker(HealthConfig{InitialBackoff: time.Second})

	if !h.IsAvailable() || h.State() != StateHealthy {
		t.Fatal("new tracker should be healthy and available")
	}

	h.RecordFailure()
	if h.State() != StateCooldown || h.IsAvailable() {
		t.Fatalf("state = %v, want unavailable cooldown", h.State())
	}
	if h.ShouldHealthCheck() {
		t.Error("no probe before the cooldown expires")
	}

	clock.Advance(time.Second)
	if !h.IsAvailable() || !h.ShouldHealthCheck() {
		t.Error("available and probe-worthy at exact expiry")
	}
}

func TestHealthTracker_BackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()
	h, clock := newTracker(HealthConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		MaxFailures:    10,
	})

	for _, want := range []time.Duration{1, 2, 4, 5, 5} {
		h.RecordFailure()
		if got := h.CurrentBackoff(); got != want*time.Second {
			t.Fatalf("backoff = %v, want %v", got, want*time.Second)
		}
		clock.Advance(want * time.Second)
	}
}

func TestHealthTracker_DeadAndRevival(t *testing.T) {
	t.Parallel()
	h, _ := newTracker(HealthConfig{MaxFailures: 2})

	var transitions []string
	h.onStateChange = func(from, to HealthState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	h.RecordSuccess() // no change, no callback
	h.RecordFailure()
	h.RecordFailure()
	if h.State() != StateDead || h.IsAvailable() {
		t.Fatal("expected dead and unavailable")
	}
	if !h.ShouldHealthCheck() {
		t.Error("dead provider should be probed")
	}

	h.RecordSuccess()
	if h.State() != StateHealthy || h.Failures() != 0 || h.CurrentBackoff() != 0 {
		t.Errorf("not reset after success: %+v", h.Status())
	}

	want := []string{"healthy->cooldown", "cooldown->dead", "dead->healthy"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestHealthTracker_DeadRecoversAfterMaxBackoff(t *testing.T) {
	t.Parallel()
	h, clock := newTracker(HealthConfig{})

	for range 5 {
		h.RecordFailure()
	}
	if h.State() != StateDead || h.IsAvailable() {
		t.Fatalf("state = %v, want unavailable dead", h.State())
	}
	if st := h.Status(); !st.CooldownUntil.Equal(clock.Now().Add(60 * time.Second)) {
		t.Errorf("CooldownUntil = %v, want one MaxBackoff away", st.CooldownUntil)
	}

	clock.Advance(59 * time.Second)
	if h.IsAvailable() {
		t.Fatal("dead provider available before MaxBackoff elapsed")
	}
	clock.Advance(time.Second)
	if !h.IsAvailable() {
		t.Fatal("dead provider should be tried again after MaxBackoff")
	}

	// A failed retry keeps it dead and restarts the window.
	h.RecordFailure()
	if h.State() != StateDead || h.IsAvailable() {
		t.Error("failed retry should restart the dead window")
	}
	clock.Advance(60 * time.Second)
	h.RecordSuccess()
	if h.State() != StateHealthy || !h.IsAvailable() {
		t.Errorf("state = %v, want healthy after a successful retry", h.State())
	}
}

func TestHealthTracker_Status(t *testing.T) {
	t.Parallel()
	h, clock := newTracker(HealthConfig{InitialBackoff: 3 * time.Second})

	h.RecordFailure()
	st := h.Status()
	if st.State != StateCooldown || st.Failures != 1 || st.Backoff != 3*time.Second {
		t.Errorf("status = %+v", st)
	}
	if !st.CooldownUntil.Equal(clock.Now().Add(3 * time.Second)) {
		t.Errorf("CooldownUntil = %v", st.CooldownUntil)
	}
}

func TestHealthTracker_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	h, clock := newTracker(HealthConfig{MaxFailures: 100})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			h.RecordFailure()
		}()
		go func() {
			defer wg.Done()
			h.IsAvailable()
		}()
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			h.RecordSuccess()
		}()
	}
	wg.Wait()
}

func TestHealthConfig_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   HealthConfig
		want HealthConfig
	}{
		{"zero", HealthConfig{}, HealthConfig{time.Second, time.Minute, 5}},
		{"negative", HealthConfig{-1, -2, -3}, HealthConfig{time.Second, time.Minute, 5}},
		{"custom", HealthConfig{500 * time.Millisecond, 30 * time.Second, 3}, HealthConfig{500 * time.Millisecond, 30 * time.Second, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			cfg.Defaults()
			if cfg != tt.want {
				t.Errorf("Defaults() = %+v, want %+v", cfg, tt.want)
			}
		})
	}
}

func TestHealthState_String(t *testing.T) {
	t.Parallel()
	tests := map[HealthState]string{
		StateHealthy:    "healthy",
		StateCooldown:   "cooldown",
		StateDead:       "dead",
		HealthState(99): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("HealthState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
