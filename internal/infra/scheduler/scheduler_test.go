package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"telegram_post_scheduler/internal/app"
	"telegram_post_scheduler/internal/infra/logger"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	stats app.RunStats
	err   error
}

func (f *fakeRunner) RunCycle(context.Context, time.Time) (app.RunStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.stats, f.err
}

type fakeFeeder struct {
	calls int
}

func (f *fakeFeeder) Feed(context.Context, time.Time) (int, error) {
	f.calls++
	return 1, nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) NotifyAdmin(text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func newTestScheduler(t *testing.T, runner CycleRunner, notifier Notifier) *DispatchScheduler {
	t.Helper()
	s, err := NewDispatchScheduler(runner, nil, notifier, logger.Discard(), Options{QueueScanSpec: "@every 1h"})
	if err != nil {
		t.Fatalf("NewDispatchScheduler: %v", err)
	}
	return s
}

func TestDispatchScheduler_StartStop(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, &fakeRunner{}, nil)

	if s.State() != StateStopped {
		t.Fatalf("initial state = %q, want %q", s.State(), StateStopped)
	}
	if err := s.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop on stopped scheduler error = %v, want %v", err, ErrNotRunning)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != StateRunning {
		t.Errorf("state = %q, want %q", s.State(), StateRunning)
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v, want %v", err, ErrAlreadyRunning)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("state after Stop = %q, want %q", s.State(), StateStopped)
	}

	// The engine can be restarted after a stop.
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}

func TestDispatchScheduler_RunNow(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{stats: app.RunStats{Attempted: 2, Sent: 2}}
	s := newTestScheduler(t, runner, nil)

	stats, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if stats != runner.stats {
		t.Errorf("stats = %+v, want %+v", stats, runner.stats)
	}
	if runner.calls != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls)
	}
}

func TestDispatchScheduler_NotifiesOnFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		runner   *fakeRunner
		wantText string
	}{
		{name: "clean run", runner: &fakeRunner{stats: app.RunStats{Attempted: 1, Sent: 1}}},
		{name: "failed items", runner: &fakeRunner{stats: app.RunStats{Attempted: 3, Sent: 1, Failed: 2}}, wantText: "ошибок 2 из 3"},
		{name: "run error", runner: &fakeRunner{err: errors.New("db down")}, wantText: "db down"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			notifier := &fakeNotifier{}
			s := newTestScheduler(t, tt.runner, notifier)

			s.scanQueue()

			if tt.wantText == "" {
				if len(notifier.messages) != 0 {
					t.Errorf("unexpected notification: %v", notifier.messages)
				}
				return
			}
			if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], tt.wantText) {
				t.Errorf("notifications = %v, want one containing %q", notifier.messages, tt.wantText)
			}
		})
	}
}

func TestNewDispatchScheduler_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewDispatchScheduler(&fakeRunner{}, nil, nil, logger.Discard(), Options{QueueScanSpec: "not a spec"}); err == nil {
		t.Error("expected error for invalid queue scan spec")
	}

	opts := Options{QueueScanSpec: "@every 1m", RotationEnabled: true, RotationWaitMin: time.Hour, RotationWaitMax: time.Minute}
	if _, err := NewDispatchScheduler(&fakeRunner{}, &fakeFeeder{}, nil, logger.Discard(), opts); err == nil {
		t.Error("expected error for inverted rotation range")
	}

	opts.RotationWaitMin, opts.RotationWaitMax = 30*time.Minute, time.Hour
	s, err := NewDispatchScheduler(&fakeRunner{}, &fakeFeeder{}, nil, logger.Discard(), opts)
	if err != nil {
		t.Fatalf("NewDispatchScheduler: %v", err)
	}
	if n := len(s.cronEngine.Entries()); n != 2 {
		t.Errorf("registered %d jobs, want 2", n)
	}
}

func TestDispatchScheduler_FeedRotation(t *testing.T) {
	t.Parallel()
	feeder := &fakeFeeder{}
	opts := Options{QueueScanSpec: "@every 1m", RotationEnabled: true, RotationWaitMin: time.Minute, RotationWaitMax: time.Minute}
	s, err := NewDispatchScheduler(&fakeRunner{}, feeder, nil, logger.Discard(), opts)
	if err != nil {
		t.Fatalf("NewDispatchScheduler: %v", err)
	}

	s.feedRotation()
	if feeder.calls != 1 {
		t.Errorf("feeder called %d times, want 1", feeder.calls)
	}
}

func TestRandomDelaySchedule(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := NewRandomDelaySchedule(0, time.Minute); err == nil {
		t.Error("expected error for zero minimum")
	}
	if _, err := NewRandomDelaySchedule(time.Hour, time.Minute); err == nil {
		t.Error("expected error for min > max")
	}

	s, err := NewRandomDelaySchedule(30*time.Minute, 60*time.Minute)
	if err != nil {
		t.Fatalf("NewRandomDelaySchedule: %v", err)
	}

	s.rand = func(int64) int64 { return 0 }
	if got := s.Next(base); !got.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("Next with lowest draw = %v, want +30m", got.Sub(base))
	}
	s.rand = func(n int64) int64 { return n - 1 }
	if got := s.Next(base); !got.Equal(base.Add(60 * time.Minute)) {
		t.Errorf("Next with highest draw = %v, want +60m", got.Sub(base))
	}

	s.rand = rand.Int63n
	for i := 0; i < 100; i++ {
		d := s.Next(base).Sub(base)
		if d < 30*time.Minute || d > 60*time.Minute {
			t.Fatalf("delay %v outside [30m, 60m]", d)
		}
	}

	fixed, _ := NewRandomDelaySchedule(time.Minute, time.Minute)
	if got := fixed.Next(base); !got.Equal(base.Add(time.Minute)) {
		t.Errorf("fixed schedule Next = %v, want +1m", got.Sub(base))
	}
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingRunner) RunCycle(context.Context, time.Time) (app.RunStats, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}
	<-b.release
	return app.RunStats{}, nil
}

func TestDispatchScheduler_SkipsOverlappingScan(t *testing.T) {
	t.Parallel()
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestScheduler(t, runner, nil)

	entries := s.cronEngine.Entries()
	if len(entries) != 1 {
		t.Fatalf("registered %d jobs, want 1", len(entries))
	}
	job := entries[0].WrappedJob

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-runner.started

	// The first scan is still running, so this activation is dropped.
	job.Run()
	close(runner.release)
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.calls != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls)
	}
}
