package dispatch

import (
	"database/sql"
	"time"
)

// Status is the lifecycle state of a ScheduledItem.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// ScheduledItem is a unit of work pairing content with a due time.
// Corresponds to the 'scheduled_items' table.
type ScheduledItem struct {
	ID          int64
	TargetID    sql.NullString // Unset: target is picked by the cycle policy at dispatch time
	ContentID   sql.NullInt64  // Unset: random content from the pool
	DueAt       time.Time
	Status      Status
	ErrorDetail sql.NullString
	DeliveredTo sql.NullString // Target the item was actually sent to
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bound reports whether the item was scheduled for a specific target.
func (i *ScheduledItem) Bound() bool {
	return i.TargetID.Valid && i.TargetID.String != ""
}

// StatusCounts is a per-status summary of the queue.
type StatusCounts struct {
	Pending int
	Sent    int
	Failed  int
}
