package target

import (
	"context"
	"errors"
)

// Errors returned by Repository implementations.
var (
	ErrNotFound        = errors.New("target not found")
	ErrDuplicateID     = errors.New("target with this id already exists")
	ErrContentNotFound = errors.New("content item not found")
)

// Repository persists targets and the content pool.
// Every mutating call must be durable before it returns.
type Repository interface {
	CreateTarget(ctx context.Context, t *Target) error
	GetTarget(ctx context.Context, id string) (*Target, error)
	DeleteTarget(ctx context.Context, id string) error
	ListTargets(ctx context.Context) ([]*Target, error) // Creation order

	CreateContent(ctx context.Context, c *ContentItem) error
	GetContent(ctx context.Context, id int64) (*ContentItem, error)
	DeleteContent(ctx context.Context, id int64) error
	ListContent(ctx context.Context) ([]*ContentItem, error) // Creation order
	CountContent(ctx context.Context) (int, error)
}
