// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"

	"github.com/flemzord/tabllm/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls int
}

var _ cron.Job = (*MockJob)(nil)

func (m *MockJob) Name() string     { return m.NameVal }
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run counts the call and delegates to RunFunc when set.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of Run calls.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockProber is a test double for cron.Prober and cron.Maintainer.
type MockProber struct {
	Recovered   int
	MaintainErr error

	mu           sync.Mutex
	probes       int
	maintenances int
}

var (
	_ cron.Prober     = (*MockProber)(nil)
	_ cron.Maintainer = (*MockProber)(nil)
)

func (m *MockProber) Probe(context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	return m.Recovered
}

func (m *MockProber) Maintain(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maintenances++
	return m.MaintainErr
}

// Probes returns the number of Probe calls.
func (m *MockProber) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// Maintenances returns the number of Maintain calls.
func (m *MockProber) Maintenances() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maintenances
}
