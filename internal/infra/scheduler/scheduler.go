package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"telegram_post_scheduler/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyRunning = errors.New("dispatcher is already running")
	ErrNotRunning     = errors.New("dispatcher is not running")
)

// State is the lifecycle state of a DispatchScheduler.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// CycleRunner runs one dispatch pass over the queue.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (app.RunStats, error)
}

// Feeder tops the queue up with rotation items.
type Feeder interface {
	Feed(ctx context.Context, now time.Time) (int, error)
}

// Notifier delivers short operator messages.
type Notifier interface {
	NotifyAdmin(text string) error
}

// Options configures the jobs registered on the cron engine.
type Options struct {
	QueueScanSpec   string // cron spec for the queue scan, e.g. "@every 1m"
	JobTimeout      time.Duration
	RotationEnabled bool
	RotationWaitMin time.Duration
	RotationWaitMax time.Duration
}

// DispatchScheduler drives the dispatcher from a single long-lived cron engine.
// Its state changes only through Start and Stop.
type DispatchScheduler struct {
	cronEngine *cron.Cron
	runner     CycleRunner
	feeder     Feeder
	notifier   Notifier
	logger     *logrus.Entry
	jobTimeout time.Duration
	now        func() time.Time

	mu     sync.Mutex
	state  State
	runCtx context.Context
	cancel context.CancelFunc
}

// NewDispatchScheduler registers the queue-scan job and, when enabled, the rotation
// job. feeder and notifier may be nil.
func NewDispatchScheduler(runner CycleRunner, feeder Feeder, notifier Notifier, logger *logrus.Entry, opts Options) (*DispatchScheduler, error) {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "cron"))
	s := &DispatchScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:     runner,
		feeder:     feeder,
		notifier:   notifier,
		logger:     logger,
		jobTimeout: opts.JobTimeout,
		now:        time.Now,
		state:      StateStopped,
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = 10 * time.Minute
	}

	if _, err := s.cronEngine.AddFunc(opts.QueueScanSpec, s.scanQueue); err != nil {
		return nil, fmt.Errorf("invalid queue scan spec %q: %w", opts.QueueScanSpec, err)
	}

	if opts.RotationEnabled && feeder != nil {
		schedule, err := NewRandomDelaySchedule(opts.RotationWaitMin, opts.RotationWaitMax)
		if err != nil {
			return nil, err
		}
		s.cronEngine.Schedule(schedule, cron.FuncJob(s.feedRotation))
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *DispatchScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins running the registered jobs.
func (s *DispatchScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrAlreadyRunning
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.cronEngine.Start()
	s.state = StateRunning
	s.logger.Info("Dispatch scheduler started")
	return nil
}

// Stop cancels the run context and waits for running jobs. An in-flight dispatch
// run finishes its current item before returning.
func (s *DispatchScheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info("Stopping dispatch scheduler...")
	cancel()
	<-s.cronEngine.Stop().Done()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("Dispatch scheduler gracefully stopped")
	return nil
}

// RunNow performs a dispatch pass immediately, outside the cron schedule.
func (s *DispatchScheduler) RunNow(ctx context.Context) (app.RunStats, error) {
	return s.runner.RunCycle(ctx, s.now())
}

func (s *DispatchScheduler) jobContext() (context.Context, context.CancelFunc) {
	s.mu.Lock()
	parent := s.runCtx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, s.jobTimeout)
}

func (s *DispatchScheduler) scanQueue() {
	ctx, cancel := s.jobContext()
	defer cancel()

	stats, err := s.runner.RunCycle(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Dispatch run failed")
		s.notify(fmt.Sprintf("Ошибка цикла отправки: %v", err))
		return
	}
	if stats.Failed > 0 {
		s.notify(fmt.Sprintf("Цикл отправки: отправлено %d, ошибок %d из %d.", stats.Sent, stats.Failed, stats.Attempted))
	}
}

func (s *DispatchScheduler) feedRotation() {
	ctx, cancel := s.jobContext()
	defer cancel()

	n, err := s.feeder.Feed(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Rotation batch failed")
		return
	}
	s.logger.WithField("items", n).Debug("Rotation job finished")
}

func (s *DispatchScheduler) notify(text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAdmin(text); err != nil {
		s.logger.WithError(err).Warn("Failed to notify admin")
	}
}
