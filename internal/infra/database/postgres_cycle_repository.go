package database

import (
	"context"
	"database/sql"
	"fmt"

	"telegram_post_scheduler/internal/domain/dispatch"
)

type PostgresCycleRepository struct {
	db *sql.DB
}

func NewPostgresCycleRepository(db *sql.DB) *PostgresCycleRepository {
	return &PostgresCycleRepository{db: db}
}

func (r *PostgresCycleRepository) CurrentCycle(ctx context.Context) (*dispatch.Cycle, error) {
	query := `SELECT number, started_at FROM dispatch_cycles ORDER BY number DESC LIMIT 1`
	cycle := &dispatch.Cycle{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&cycle.Number, &cycle.StartedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, dispatch.ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting current cycle: %w", err)
	}
	if err := r.loadDeliveries(ctx, cycle); err != nil {
		return nil, err
	}
	return cycle, nil
}

// GetCycle returns an empty cycle for numbers that were never started.
func (r *PostgresCycleRepository) GetCycle(ctx context.Context, number int64) (*dispatch.Cycle, error) {
	cycle := &dispatch.Cycle{Number: number}
	err := r.db.QueryRowContext(ctx, `SELECT started_at FROM dispatch_cycles WHERE number = $1`, number).Scan(&cycle.StartedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("error getting cycle %d: %w", number, err)
	}
	if err := r.loadDeliveries(ctx, cycle); err != nil {
		return nil, err
	}
	return cycle, nil
}

func (r *PostgresCycleRepository) loadDeliveries(ctx context.Context, cycle *dispatch.Cycle) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT target_id FROM cycle_deliveries WHERE cycle_number = $1 ORDER BY delivered_at`, cycle.Number)
	if err != nil {
		return fmt.Errorf("error querying deliveries of cycle %d: %w", cycle.Number, err)
	}
	defer rows.Close()

	cycle.SentTargetIDs = make([]string, 0)
	for rows.Next() {
		var targetID string
		if err := rows.Scan(&targetID); err != nil {
			return fmt.Errorf("error scanning delivery row: %w", err)
		}
		cycle.SentTargetIDs = append(cycle.SentTargetIDs, targetID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating delivery rows: %w", err)
	}
	return nil
}

func (r *PostgresCycleRepository) StartCycle(ctx context.Context, number int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dispatch_cycles (number) VALUES ($1) ON CONFLICT (number) DO NOTHING`, number)
	if err != nil {
		return fmt.Errorf("error starting cycle %d: %w", number, err)
	}
	return nil
}

// AddDelivery starts the cycle when needed so the foreign key always holds.
func (r *PostgresCycleRepository) AddDelivery(ctx context.Context, number int64, targetID string) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for delivery: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if _, err := txn.ExecContext(ctx,
		`INSERT INTO dispatch_cycles (number) VALUES ($1) ON CONFLICT (number) DO NOTHING`, number); err != nil {
		return fmt.Errorf("error ensuring cycle %d: %w", number, err)
	}
	if _, err := txn.ExecContext(ctx,
		`INSERT INTO cycle_deliveries (cycle_number, target_id) VALUES ($1, $2)
         ON CONFLICT (cycle_number, target_id) DO NOTHING`, number, targetID); err != nil {
		return fmt.Errorf("error recording delivery to %s in cycle %d: %w", targetID, number, err)
	}
	return txn.Commit()
}
