package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"telegram_post_scheduler/internal/domain/dispatch"
	"telegram_post_scheduler/internal/domain/platform"
	"telegram_post_scheduler/internal/domain/target"

	"github.com/sirupsen/logrus"
)

const defaultSendTimeout = 30 * time.Second

// BatchPolicy caps how many due items one RunCycle processes.
// The cap is drawn uniformly from [Min, Max]; Max == 0 means no cap.
type BatchPolicy struct {
	Min int
	Max int
}

func (p BatchPolicy) limit(intn func(int) int) int {
	if p.Max <= 0 {
		return 0
	}
	lo := p.Min
	if lo < 1 {
		lo = 1
	}
	if lo >= p.Max {
		return p.Max
	}
	return lo + intn(p.Max-lo+1)
}

// RunStats summarizes a single RunCycle.
type RunStats struct {
	Attempted int
	Sent      int
	Failed    int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBatchPolicy sets the per-run cap on processed items.
func WithBatchPolicy(p BatchPolicy) DispatcherOption {
	return func(d *Dispatcher) { d.batch = p }
}

// WithSendTimeout bounds every PlatformClient call. Non-positive values keep the default.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithRandom replaces the random source used for batch caps and target choice.
func WithRandom(intn func(n int) int) DispatcherOption {
	return func(d *Dispatcher) { d.intn = intn }
}

// Dispatcher advances the queue by sending due items through the platform client.
// RunCycle calls are serialized; at most one runs at any time.
type Dispatcher struct {
	runMu sync.Mutex

	queue    *DispatchQueue
	tracker  *CycleTracker
	registry *TargetRegistry
	client   platform.Client
	logger   *logrus.Entry

	batch       BatchPolicy
	sendTimeout time.Duration
	intn        func(n int) int
}

func NewDispatcher(
	queue *DispatchQueue,
	tracker *CycleTracker,
	registry *TargetRegistry,
	client platform.Client,
	logger *logrus.Entry,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		queue:       queue,
		tracker:     tracker,
		registry:    registry,
		client:      client,
		logger:      logger,
		sendTimeout: defaultSendTimeout,
		intn:        rand.Intn,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunCycle sends the items due at now. A failure of one item marks that item failed
// and the run continues; only storage faults abort the run. When ctx is cancelled the
// run stops before the next item, the in-flight send is allowed to finish.
func (d *Dispatcher) RunCycle(ctx context.Context, now time.Time) (RunStats, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	var stats RunStats

	due, err := d.queue.DueItems(ctx, now)
	if err != nil {
		return stats, err
	}
	if len(due) == 0 {
		d.logger.Debug("No due items")
		return stats, nil
	}

	if limit := d.batch.limit(d.intn); limit > 0 && len(due) > limit {
		d.logger.WithFields(logrus.Fields{"due": len(due), "limit": limit}).Info("Batch cap reached, deferring remaining items")
		due = due[:limit]
	}

	for _, item := range due {
		if err := ctx.Err(); err != nil {
			d.logger.Info("Dispatch run interrupted by shutdown")
			return stats, nil
		}

		stats.Attempted++
		sent, err := d.dispatchItem(ctx, item)
		if err != nil {
			return stats, err
		}
		if sent {
			stats.Sent++
		} else {
			stats.Failed++
		}
	}

	d.logger.WithFields(logrus.Fields{
		"attempted": stats.Attempted,
		"sent":      stats.Sent,
		"failed":    stats.Failed,
	}).Info("Dispatch run finished")
	return stats, nil
}

// dispatchItem resolves, sends and records one item. It reports whether the item
// was sent; the returned error is reserved for storage faults.
func (d *Dispatcher) dispatchItem(ctx context.Context, item *dispatch.ScheduledItem) (bool, error) {
	itemLogger := d.logger.WithField("item_id", item.ID)

	cycle, err := d.tracker.CurrentCycle(ctx)
	if err != nil {
		return false, err
	}

	t, cycle, err := d.resolveTarget(ctx, item, cycle)
	if err != nil {
		return false, d.fail(ctx, itemLogger, item, err)
	}
	itemLogger = itemLogger.WithFields(logrus.Fields{"target_id": t.ID, "cycle": cycle})

	content, err := d.resolveContent(ctx, item)
	if err != nil {
		return false, d.fail(ctx, itemLogger, item, err)
	}

	// Once a send has started, shutdown must neither abort it nor keep its
	// outcome from being recorded.
	recordCtx := context.WithoutCancel(ctx)
	sendCtx, cancel := context.WithTimeout(recordCtx, d.sendTimeout)
	receipt, err := d.client.Send(sendCtx, t, content)
	cancel()
	if err != nil {
		var deliveryErr *platform.DeliveryError
		if !errors.As(err, &deliveryErr) {
			err = &platform.DeliveryError{TargetID: t.ID, Err: err}
		}
		return false, d.fail(recordCtx, itemLogger, item, err)
	}

	if err := d.queue.MarkSent(recordCtx, item.ID, t.ID); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrItemNotFound) {
			itemLogger.WithError(err).Warn("Item changed while it was being sent")
			return true, nil
		}
		return false, err
	}
	if err := d.tracker.MarkSent(recordCtx, cycle, t.ID); err != nil {
		return false, err
	}

	itemLogger.WithField("message_id", receipt.MessageID).Info("Item sent")
	return true, nil
}

func (d *Dispatcher) resolveTarget(ctx context.Context, item *dispatch.ScheduledItem, cycle int64) (*target.Target, int64, error) {
	if item.Bound() {
		t, err := d.registry.GetTarget(ctx, item.TargetID.String)
		if err != nil {
			return nil, cycle, err
		}
		return t, cycle, nil
	}

	all, err := d.registry.ListTargets(ctx)
	if err != nil {
		return nil, cycle, err
	}
	eligible, cycle, err := d.tracker.UnsentTargets(ctx, cycle, all)
	if err != nil {
		return nil, cycle, err
	}
	if len(eligible) == 0 {
		return nil, cycle, ErrNoEligibleTarget
	}
	return eligible[d.intn(len(eligible))], cycle, nil
}

func (d *Dispatcher) resolveContent(ctx context.Context, item *dispatch.ScheduledItem) (*target.ContentItem, error) {
	if item.ContentID.Valid {
		return d.registry.GetContent(ctx, item.ContentID.Int64)
	}
	return d.registry.RandomContent(ctx)
}

// fail marks the item failed when cause is an item-level condition, and returns
// cause unchanged when it is a storage fault that should abort the run.
func (d *Dispatcher) fail(ctx context.Context, logger *logrus.Entry, item *dispatch.ScheduledItem, cause error) error {
	if !isItemFailure(cause) {
		return cause
	}

	logger.WithError(cause).Warn("Item failed")
	if err := d.queue.MarkFailed(ctx, item.ID, cause.Error()); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrItemNotFound) {
			logger.WithError(err).Warn("Item changed while it was being processed")
			return nil
		}
		return fmt.Errorf("failed to record failure of item %d: %w", item.ID, err)
	}
	return nil
}

func isItemFailure(err error) bool {
	var deliveryErr *platform.DeliveryError
	switch {
	case errors.As(err, &deliveryErr),
		errors.Is(err, ErrNoEligibleTarget),
		errors.Is(err, ErrEmptyPool),
		errors.Is(err, ErrTargetNotFound),
		errors.Is(err, ErrContentNotFound):
		return true
	}
	return false
}
