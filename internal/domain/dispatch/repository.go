package dispatch

import (
	"context"
	"errors"
	"time"
)

// Errors returned by repository implementations.
var (
	ErrItemNotFound  = errors.New("scheduled item not found")
	ErrNotPending    = errors.New("scheduled item is not pending")
	ErrCycleNotFound = errors.New("dispatch cycle not found")
)

// QueueRepository persists scheduled items.
// Status-changing methods only touch pending items and return ErrNotPending otherwise,
// so two workers can never both move the same item out of pending.
type QueueRepository interface {
	CreateItem(ctx context.Context, item *ScheduledItem) error
	GetItem(ctx context.Context, id int64) (*ScheduledItem, error)
	ListDue(ctx context.Context, now time.Time) ([]*ScheduledItem, error) // dueAt ASC, id ASC
	ListItems(ctx context.Context, status Status, limit int) ([]*ScheduledItem, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)

	MarkSent(ctx context.Context, id int64, deliveredTo string) error
	MarkFailed(ctx context.Context, id int64, detail string) error
	DeletePending(ctx context.Context, id int64) error
	ReschedulePending(ctx context.Context, id int64, dueAt time.Time) error
}

// CycleRepository persists rotation cycles.
type CycleRepository interface {
	// CurrentCycle returns the highest cycle number.
	CurrentCycle(ctx context.Context) (*Cycle, error)
	GetCycle(ctx context.Context, number int64) (*Cycle, error)
	// StartCycle creates the cycle with the given number if it does not exist yet.
	// It is a no-op when the cycle already exists.
	StartCycle(ctx context.Context, number int64) error
	// AddDelivery records targetID in the cycle's sent set; repeated calls are no-ops.
	AddDelivery(ctx context.Context, number int64, targetID string) error
}
