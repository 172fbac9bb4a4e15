package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"telegram_post_scheduler/internal/domain/dispatch"
)

type PostgresQueueRepository struct {
	db *sql.DB
}

func NewPostgresQueueRepository(db *sql.DB) *PostgresQueueRepository {
	return &PostgresQueueRepository{db: db}
}

const itemColumns = `id, target_id, content_id, due_at, status, error_detail, delivered_to, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }, item *dispatch.ScheduledItem) error {
	return row.Scan(
		&item.ID, &item.TargetID, &item.ContentID, &item.DueAt, &item.Status,
		&item.ErrorDetail, &item.DeliveredTo, &item.CreatedAt, &item.UpdatedAt,
	)
}

// Helper to scan multiple rows
func scanItems(rows *sql.Rows) ([]*dispatch.ScheduledItem, error) {
	items := make([]*dispatch.ScheduledItem, 0)
	for rows.Next() {
		item := &dispatch.ScheduledItem{}
		if err := scanItem(rows, item); err != nil {
			return nil, fmt.Errorf("error scanning scheduled item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled item rows: %w", err)
	}
	return items, nil
}

func (r *PostgresQueueRepository) CreateItem(ctx context.Context, item *dispatch.ScheduledItem) error {
	query := `INSERT INTO scheduled_items (target_id, content_id, due_at, status)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at, updated_at`
	if item.Status == "" {
		item.Status = dispatch.StatusPending
	}
	err := r.db.QueryRowContext(ctx, query, item.TargetID, item.ContentID, item.DueAt, item.Status).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating scheduled item: %w", err)
	}
	return nil
}

func (r *PostgresQueueRepository) GetItem(ctx context.Context, id int64) (*dispatch.ScheduledItem, error) {
	query := `SELECT ` + itemColumns + ` FROM scheduled_items WHERE id = $1`
	item := &dispatch.ScheduledItem{}
	if err := scanItem(r.db.QueryRowContext(ctx, query, id), item); err != nil {
		if err == sql.ErrNoRows {
			return nil, dispatch.ErrItemNotFound
		}
		return nil, fmt.Errorf("error getting scheduled item by ID: %w", err)
	}
	return item, nil
}

func (r *PostgresQueueRepository) ListDue(ctx context.Context, now time.Time) ([]*dispatch.ScheduledItem, error) {
	query := `SELECT ` + itemColumns + `
               FROM scheduled_items
               WHERE status = $1 AND due_at <= $2
               ORDER BY due_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, dispatch.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("error querying due items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *PostgresQueueRepository) ListItems(ctx context.Context, status dispatch.Status, limit int) ([]*dispatch.ScheduledItem, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + itemColumns + `
               FROM scheduled_items
               WHERE (status = $1 OR $1 = '')
               ORDER BY id DESC
               LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("error listing scheduled items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *PostgresQueueRepository) CountByStatus(ctx context.Context) (dispatch.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM scheduled_items GROUP BY status`)
	if err != nil {
		return dispatch.StatusCounts{}, fmt.Errorf("error counting scheduled items: %w", err)
	}
	defer rows.Close()

	var counts dispatch.StatusCounts
	for rows.Next() {
		var status dispatch.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return dispatch.StatusCounts{}, fmt.Errorf("error scanning status count: %w", err)
		}
		switch status {
		case dispatch.StatusPending:
			counts.Pending = n
		case dispatch.StatusSent:
			counts.Sent = n
		case dispatch.StatusFailed:
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return dispatch.StatusCounts{}, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

func (r *PostgresQueueRepository) MarkSent(ctx context.Context, id int64, deliveredTo string) error {
	query := `UPDATE scheduled_items
               SET status = $1, delivered_to = NULLIF($2, ''), updated_at = NOW()
               WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, dispatch.StatusSent, deliveredTo, id, dispatch.StatusPending)
	if err != nil {
		return fmt.Errorf("error marking scheduled item sent: %w", err)
	}
	return r.checkTransition(ctx, res, id)
}

func (r *PostgresQueueRepository) MarkFailed(ctx context.Context, id int64, detail string) error {
	query := `UPDATE scheduled_items
               SET status = $1, error_detail = $2, updated_at = NOW()
               WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, dispatch.StatusFailed, detail, id, dispatch.StatusPending)
	if err != nil {
		return fmt.Errorf("error marking scheduled item failed: %w", err)
	}
	return r.checkTransition(ctx, res, id)
}

func (r *PostgresQueueRepository) ReschedulePending(ctx context.Context, id int64, dueAt time.Time) error {
	query := `UPDATE scheduled_items
               SET due_at = $1, updated_at = NOW()
               WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, dueAt, id, dispatch.StatusPending)
	if err != nil {
		return fmt.Errorf("error rescheduling item: %w", err)
	}
	return r.checkTransition(ctx, res, id)
}

func (r *PostgresQueueRepository) DeletePending(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_items WHERE id = $1 AND status = $2`, id, dispatch.StatusPending)
	if err != nil {
		return fmt.Errorf("error deleting scheduled item: %w", err)
	}
	return r.checkTransition(ctx, res, id)
}

// checkTransition tells a missing item apart from one that is no longer pending
// when a conditional statement affected no rows.
func (r *PostgresQueueRepository) checkTransition(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM scheduled_items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking scheduled item: %w", err)
	}
	if !exists {
		return dispatch.ErrItemNotFound
	}
	return dispatch.ErrNotPending
}
