package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RotationFeeder keeps the queue topped up with unbound items so that content is
// spread over all targets cycle by cycle without manual scheduling.
type RotationFeeder struct {
	queue    *DispatchQueue
	tracker  *CycleTracker
	registry *TargetRegistry
	batch    BatchPolicy
	logger   *logrus.Entry
	intn     func(n int) int
}

func NewRotationFeeder(queue *DispatchQueue, tracker *CycleTracker, registry *TargetRegistry, batch BatchPolicy, logger *logrus.Entry) *RotationFeeder {
	return &RotationFeeder{
		queue:    queue,
		tracker:  tracker,
		registry: registry,
		batch:    batch,
		logger:   logger,
		intn:     rand.Intn,
	}
}

// Feed schedules a random-sized batch of unbound items due at now, never more than
// the number of targets still eligible in the current cycle. It returns how many
// items were scheduled.
func (f *RotationFeeder) Feed(ctx context.Context, now time.Time) (int, error) {
	contentCount, err := f.registry.ContentCount(ctx)
	if err != nil {
		return 0, err
	}
	if contentCount == 0 {
		f.logger.Warn("Content pool is empty, skipping rotation batch")
		return 0, nil
	}

	all, err := f.registry.ListTargets(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		f.logger.Warn("No targets registered, skipping rotation batch")
		return 0, nil
	}

	cycle, err := f.tracker.CurrentCycle(ctx)
	if err != nil {
		return 0, err
	}
	eligible, _, err := f.tracker.UnsentTargets(ctx, cycle, all)
	if err != nil {
		return 0, err
	}

	size := f.batch.limit(f.intn)
	if size == 0 || size > len(eligible) {
		size = len(eligible)
	}

	for i := 0; i < size; i++ {
		if _, err := f.queue.Schedule(ctx, "", 0, now); err != nil {
			return i, err
		}
	}
	f.logger.WithField("items", size).Info("Rotation batch scheduled")
	return size, nil
}
