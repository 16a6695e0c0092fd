package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field expressions and descriptors.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule reports whether expr is a schedule the scheduler accepts.
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Scheduler runs registered jobs on their schedules. A tick is skipped when
// the previous run of the same job has not finished.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]Job
	order   []string
	running map[string]*sync.Mutex
	timeout time.Duration
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. timeout bounds each run; zero means no
// bound beyond the scheduler's own lifetime.
func NewScheduler(logger *slog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		jobs:    make(map[string]Job),
		running: make(map[string]*sync.Mutex),
		timeout: timeout,
		logger:  logger,
	}
}

// RegisterJob adds j. Jobs must be registered before Start.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	if err := ParseSchedule(j.Schedule()); err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}
	s.jobs[name] = j
	s.order = append(s.order, name)
	s.running[name] = &sync.Mutex{}
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start begins executing the registered jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithParser(parser))
	for _, name := range s.order {
		job := s.jobs[name]
		if _, err := c.AddFunc(job.Schedule(), func() { s.tick(ctx, job) }); err != nil {
			cancel()
			return fmt.Errorf("cron: scheduling job %q: %w", name, err)
		}
	}

	s.cron, s.cancel = c, cancel
	c.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

// RunNow runs the named job once, synchronously, honouring the
// no-overlap rule. It reports false when the job was already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("cron: unknown job %q", name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	ran, err := s.run(ctx, job)
	switch {
	case !ran:
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
	case err != nil:
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) (bool, error) {
	s.mu.Lock()
	lock := s.running[job.Name()]
	s.mu.Unlock()

	if !lock.TryLock() {
		return false, nil
	}
	defer lock.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := job.Run(ctx)
	s.logger.Debug("cron: job finished", "job", job.Name(), "elapsed", time.Since(start), "error", err)
	return true, err
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
