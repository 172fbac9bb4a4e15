package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram_post_scheduler/internal/domain/dispatch"

	"github.com/sirupsen/logrus"
)

// DispatchQueue owns the lifecycle of scheduled items:
// pending -> sent | failed, or pending -> deleted via Cancel.
type DispatchQueue struct {
	repo   dispatch.QueueRepository
	logger *logrus.Entry
}

func NewDispatchQueue(repo dispatch.QueueRepository, logger *logrus.Entry) *DispatchQueue {
	return &DispatchQueue{
		repo:   repo,
		logger: logger,
	}
}

// Schedule creates a pending item. An empty targetID or a zero contentID leaves the
// choice to the dispatcher. Due times in the past are accepted and are due immediately.
func (q *DispatchQueue) Schedule(ctx context.Context, targetID string, contentID int64, dueAt time.Time) (*dispatch.ScheduledItem, error) {
	if dueAt.IsZero() {
		return nil, ErrInvalidDueTime
	}

	item := &dispatch.ScheduledItem{
		DueAt:  dueAt.UTC(),
		Status: dispatch.StatusPending,
	}
	if targetID = strings.TrimSpace(targetID); targetID != "" {
		item.TargetID = sql.NullString{String: targetID, Valid: true}
	}
	if contentID > 0 {
		item.ContentID = sql.NullInt64{Int64: contentID, Valid: true}
	}

	if err := q.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create scheduled item: %w", err)
	}
	q.logger.WithFields(logrus.Fields{
		"item_id":   item.ID,
		"target_id": item.TargetID.String,
		"due_at":    item.DueAt.Format(time.RFC3339),
	}).Info("Item scheduled")
	return item, nil
}

// DueItems returns pending items with dueAt <= now, earliest first.
func (q *DispatchQueue) DueItems(ctx context.Context, now time.Time) ([]*dispatch.ScheduledItem, error) {
	items, err := q.repo.ListDue(ctx, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list due items: %w", err)
	}
	return items, nil
}

func (q *DispatchQueue) Get(ctx context.Context, id int64) (*dispatch.ScheduledItem, error) {
	item, err := q.repo.GetItem(ctx, id)
	if err != nil {
		return nil, q.mapErr(err, "get", id)
	}
	return item, nil
}

// List returns up to limit items in the given status, or in any status when status is empty.
func (q *DispatchQueue) List(ctx context.Context, status dispatch.Status, limit int) ([]*dispatch.ScheduledItem, error) {
	items, err := q.repo.ListItems(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (q *DispatchQueue) Counts(ctx context.Context) (dispatch.StatusCounts, error) {
	counts, err := q.repo.CountByStatus(ctx)
	if err != nil {
		return dispatch.StatusCounts{}, fmt.Errorf("failed to count items: %w", err)
	}
	return counts, nil
}

// MarkSent moves a pending item to sent, recording the target it was delivered to.
func (q *DispatchQueue) MarkSent(ctx context.Context, id int64, deliveredTo string) error {
	if err := q.repo.MarkSent(ctx, id, deliveredTo); err != nil {
		return q.mapErr(err, "mark sent", id)
	}
	return nil
}

// MarkFailed moves a pending item to failed. Failure is terminal.
func (q *DispatchQueue) MarkFailed(ctx context.Context, id int64, detail string) error {
	if err := q.repo.MarkFailed(ctx, id, detail); err != nil {
		return q.mapErr(err, "mark failed", id)
	}
	return nil
}

// Cancel deletes a pending item.
func (q *DispatchQueue) Cancel(ctx context.Context, id int64) error {
	if err := q.repo.DeletePending(ctx, id); err != nil {
		return q.mapErr(err, "cancel", id)
	}
	q.logger.WithField("item_id", id).Info("Item cancelled")
	return nil
}

// Reschedule moves the due time of a pending item.
func (q *DispatchQueue) Reschedule(ctx context.Context, id int64, dueAt time.Time) error {
	if dueAt.IsZero() {
		return ErrInvalidDueTime
	}
	if err := q.repo.ReschedulePending(ctx, id, dueAt.UTC()); err != nil {
		return q.mapErr(err, "reschedule", id)
	}
	q.logger.WithFields(logrus.Fields{"item_id": id, "due_at": dueAt.UTC().Format(time.RFC3339)}).Info("Item rescheduled")
	return nil
}

func (q *DispatchQueue) mapErr(err error, op string, id int64) error {
	switch {
	case errors.Is(err, dispatch.ErrItemNotFound):
		return ErrItemNotFound
	case errors.Is(err, dispatch.ErrNotPending):
		return ErrInvalidTransition
	default:
		return fmt.Errorf("failed to %s item %d: %w", op, id, err)
	}
}
