package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"telegram_post_scheduler/internal/domain/target"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PostgresTargetRepository struct {
	db *sql.DB
}

func NewPostgresTargetRepository(db *sql.DB) *PostgresTargetRepository {
	return &PostgresTargetRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// --- Targets ---

func (r *PostgresTargetRepository) CreateTarget(ctx context.Context, t *target.Target) error {
	query := `INSERT INTO targets (id, display_name, kind)
               VALUES ($1, $2, $3)
               RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, t.ID, t.DisplayName, t.Kind).Scan(&t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return target.ErrDuplicateID
		}
		return fmt.Errorf("error creating target: %w", err)
	}
	return nil
}

func (r *PostgresTargetRepository) GetTarget(ctx context.Context, id string) (*target.Target, error) {
	query := `SELECT id, display_name, kind, created_at FROM targets WHERE id = $1`
	t := &target.Target{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.DisplayName, &t.Kind, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, target.ErrNotFound
		}
		return nil, fmt.Errorf("error getting target by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTargetRepository) DeleteTarget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting target: %w", err)
	}
	return expectOneRow(res, target.ErrNotFound)
}

func (r *PostgresTargetRepository) ListTargets(ctx context.Context) ([]*target.Target, error) {
	query := `SELECT id, display_name, kind, created_at FROM targets ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing targets: %w", err)
	}
	defer rows.Close()

	targets := make([]*target.Target, 0)
	for rows.Next() {
		t := &target.Target{}
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.Kind, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning target: %w", err)
		}
		targets = append(targets, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}
	return targets, nil
}

// --- Content pool ---

func (r *PostgresTargetRepository) CreateContent(ctx context.Context, c *target.ContentItem) error {
	query := `INSERT INTO content_items (body, media_url)
               VALUES ($1, $2)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, c.Body, c.MediaURL).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating content item: %w", err)
	}
	return nil
}

func (r *PostgresTargetRepository) GetContent(ctx context.Context, id int64) (*target.ContentItem, error) {
	query := `SELECT id, body, media_url, created_at FROM content_items WHERE id = $1`
	c := &target.ContentItem{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Body, &c.MediaURL, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, target.ErrContentNotFound
		}
		return nil, fmt.Errorf("error getting content item by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresTargetRepository) DeleteContent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting content item: %w", err)
	}
	return expectOneRow(res, target.ErrContentNotFound)
}

func (r *PostgresTargetRepository) ListContent(ctx context.Context) ([]*target.ContentItem, error) {
	query := `SELECT id, body, media_url, created_at FROM content_items ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing content items: %w", err)
	}
	defer rows.Close()

	items := make([]*target.ContentItem, 0)
	for rows.Next() {
		c := &target.ContentItem{}
		if err := rows.Scan(&c.ID, &c.Body, &c.MediaURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning content item: %w", err)
		}
		items = append(items, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content items: %w", err)
	}
	return items, nil
}

func (r *PostgresTargetRepository) CountContent(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting content items: %w", err)
	}
	return n, nil
}

// expectOneRow turns a zero rows-affected result into notFound.
func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
