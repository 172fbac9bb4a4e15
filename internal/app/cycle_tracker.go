package app

import (
	"context"
	"fmt"
	"sync"

	"telegram_post_scheduler/internal/domain/dispatch"
	"telegram_post_scheduler/internal/domain/target"

	"github.com/sirupsen/logrus"
)

// CycleTracker decides which targets are still eligible in the current rotation.
// Every target is served once per cycle; once all are served the next query
// lazily starts a new cycle.
type CycleTracker struct {
	mu     sync.Mutex
	repo   dispatch.CycleRepository
	logger *logrus.Entry
}

func NewCycleTracker(repo dispatch.CycleRepository, logger *logrus.Entry) *CycleTracker {
	return &CycleTracker{
		repo:   repo,
		logger: logger,
	}
}

// CurrentCycle returns the number of the active cycle.
func (c *CycleTracker) CurrentCycle(ctx context.Context) (int64, error) {
	cycle, err := c.repo.CurrentCycle(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current cycle: %w", err)
	}
	return cycle.Number, nil
}

// Status returns the active cycle together with its sent set.
func (c *CycleTracker) Status(ctx context.Context) (*dispatch.Cycle, error) {
	cycle, err := c.repo.CurrentCycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current cycle: %w", err)
	}
	return cycle, nil
}

// UnsentTargets returns the targets from all that have not been served in cycleNumber,
// along with the cycle they belong to. When every target has been served, cycle
// cycleNumber+1 is started and all targets are returned for it. An empty all never
// triggers a rollover.
func (c *CycleTracker) UnsentTargets(ctx context.Context, cycleNumber int64, all []*target.Target) ([]*target.Target, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(all) == 0 {
		return nil, cycleNumber, nil
	}

	cycle, err := c.repo.GetCycle(ctx, cycleNumber)
	if err != nil {
		return nil, cycleNumber, fmt.Errorf("failed to get cycle %d: %w", cycleNumber, err)
	}

	unsent := make([]*target.Target, 0, len(all))
	for _, t := range all {
		if !cycle.Has(t.ID) {
			unsent = append(unsent, t)
		}
	}
	if len(unsent) > 0 {
		return unsent, cycleNumber, nil
	}

	next := cycleNumber + 1
	if err := c.repo.StartCycle(ctx, next); err != nil {
		return nil, cycleNumber, fmt.Errorf("failed to start cycle %d: %w", next, err)
	}
	c.logger.WithFields(logrus.Fields{"completed_cycle": cycleNumber, "cycle": next}).Info("Cycle completed, starting new cycle")

	fresh := make([]*target.Target, len(all))
	copy(fresh, all)
	return fresh, next, nil
}

// MarkSent records that targetID was served in cycleNumber. Repeated calls are no-ops.
func (c *CycleTracker) MarkSent(ctx context.Context, cycleNumber int64, targetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.AddDelivery(ctx, cycleNumber, targetID); err != nil {
		return fmt.Errorf("failed to record delivery to %s in cycle %d: %w", targetID, cycleNumber, err)
	}
	return nil
}

// ResetCycle starts a new cycle regardless of coverage and returns its number.
func (c *CycleTracker) ResetCycle(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.repo.CurrentCycle(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current cycle: %w", err)
	}
	next := current.Number + 1
	if err := c.repo.StartCycle(ctx, next); err != nil {
		return 0, fmt.Errorf("failed to start cycle %d: %w", next, err)
	}
	c.logger.WithField("cycle", next).Info("Cycle reset by operator")
	return next, nil
}
