package cron_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/tabllm/internal/cron"
	"github.com/flemzord/tabllm/internal/cron/crontest"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr  string
		valid bool
	}{
		{"*/5 * * * *", true},
		{"@every 30s", true},
		{"@hourly", true},
		{"0 25 * * *", false},
		{"invalid", false},
		{"", false},
	}
	for _, tt := range tests {
		if err := cron.ParseSchedule(tt.expr); (err == nil) != tt.valid {
			t.Errorf("ParseSchedule(%q) err = %v, want valid=%v", tt.expr, err, tt.valid)
		}
	}
}

func TestScheduler_RegisterJob(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil, 0)
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "a", ScheduleVal: "@every 1m"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "a", ScheduleVal: "@every 1m"}); err == nil {
		t.Error("duplicate name should fail")
	}
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "b", ScheduleVal: "sometimes"}); err == nil {
		t.Error("invalid schedule should fail at registration")
	}
	if got := s.Jobs(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("Jobs() = %v", got)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil, 0)
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "noop", ScheduleVal: "@every 1h"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	job := &crontest.MockJob{
		NameVal:     "fails",
		ScheduleVal: "@every 1h",
		RunFunc:     func(context.Context) error { return boom },
	}
	s := cron.NewScheduler(nil, 0)
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}

	ran, err := s.RunNow(context.Background(), "fails")
	if !ran || !errors.Is(err, boom) {
		t.Errorf("RunNow = %v, %v; want true, boom", ran, err)
	}
	if _, err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Error("unknown job should fail")
	}
}

func TestScheduler_NoOverlap(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	job := &crontest.MockJob{
		NameVal:     "slow",
		ScheduleVal: "@every 1h",
		RunFunc: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}
	s := cron.NewScheduler(nil, 0)
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.RunNow(context.Background(), "slow")
	}()
	<-started

	ran, err := s.RunNow(context.Background(), "slow")
	if ran || err != nil {
		t.Errorf("overlapping run = %v, %v; want skipped", ran, err)
	}
	close(release)
	wg.Wait()

	if n := job.CallCount(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestScheduler_Timeout(t *testing.T) {
	t.Parallel()

	job := &crontest.MockJob{
		NameVal:     "stuck",
		ScheduleVal: "@every 1h",
		RunFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	s := cron.NewScheduler(nil, 10*time.Millisecond)
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunNow(context.Background(), "stuck"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
