package app

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"telegram_post_scheduler/internal/domain/target"

	"github.com/sirupsen/logrus"
)

// TargetRegistry owns the list of dispatch targets and the content pool.
type TargetRegistry struct {
	repo   target.Repository
	logger *logrus.Entry
	intn   func(n int) int
}

func NewTargetRegistry(repo target.Repository, logger *logrus.Entry) *TargetRegistry {
	return &TargetRegistry{
		repo:   repo,
		logger: logger,
		intn:   rand.Intn,
	}
}

// AddTarget validates and persists a new target.
func (r *TargetRegistry) AddTarget(ctx context.Context, name, id string, kind target.Kind) (*target.Target, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("target id must not be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}

	t := &target.Target{ID: id, DisplayName: name, Kind: kind}
	if err := r.repo.CreateTarget(ctx, t); err != nil {
		if errors.Is(err, target.ErrDuplicateID) {
			return nil, ErrTargetAlreadyExists
		}
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	r.logger.WithFields(logrus.Fields{"target_id": t.ID, "kind": t.Kind}).Info("Target added")
	return t, nil
}

// RemoveTarget deletes the target at the given position of ListTargets.
func (r *TargetRegistry) RemoveTarget(ctx context.Context, index int) (*target.Target, error) {
	targets, err := r.repo.ListTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	if index < 0 || index >= len(targets) {
		return nil, ErrIndexOutOfRange
	}

	removed := targets[index]
	if err := r.repo.DeleteTarget(ctx, removed.ID); err != nil {
		if errors.Is(err, target.ErrNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("failed to delete target %s: %w", removed.ID, err)
	}
	r.logger.WithField("target_id", removed.ID).Info("Target removed")
	return removed, nil
}

func (r *TargetRegistry) ListTargets(ctx context.Context) ([]*target.Target, error) {
	targets, err := r.repo.ListTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return targets, nil
}

func (r *TargetRegistry) GetTarget(ctx context.Context, id string) (*target.Target, error) {
	t, err := r.repo.GetTarget(ctx, id)
	if err != nil {
		if errors.Is(err, target.ErrNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("failed to get target %s: %w", id, err)
	}
	return t, nil
}

// AddContent appends a text body to the content pool.
func (r *TargetRegistry) AddContent(ctx context.Context, body string) (*target.ContentItem, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyContent
	}
	return r.createContent(ctx, &target.ContentItem{Body: body})
}

// AddPhotoContent appends a media post; caption may be empty.
func (r *TargetRegistry) AddPhotoContent(ctx context.Context, mediaURL, caption string) (*target.ContentItem, error) {
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		return nil, ErrEmptyContent
	}
	return r.createContent(ctx, &target.ContentItem{
		Body:     strings.TrimSpace(caption),
		MediaURL: sql.NullString{String: mediaURL, Valid: true},
	})
}

func (r *TargetRegistry) createContent(ctx context.Context, c *target.ContentItem) (*target.ContentItem, error) {
	if err := r.repo.CreateContent(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create content item: %w", err)
	}
	r.logger.WithFields(logrus.Fields{"content_id": c.ID, "media": c.HasMedia()}).Debug("Content added")
	return c, nil
}

// RemoveContent deletes the content item at the given position of ListContent.
func (r *TargetRegistry) RemoveContent(ctx context.Context, index int) (*target.ContentItem, error) {
	items, err := r.repo.ListContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	if index < 0 || index >= len(items) {
		return nil, ErrIndexOutOfRange
	}

	removed := items[index]
	if err := r.repo.DeleteContent(ctx, removed.ID); err != nil {
		if errors.Is(err, target.ErrContentNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to delete content %d: %w", removed.ID, err)
	}
	return removed, nil
}

func (r *TargetRegistry) ListContent(ctx context.Context) ([]*target.ContentItem, error) {
	items, err := r.repo.ListContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return items, nil
}

func (r *TargetRegistry) GetContent(ctx context.Context, id int64) (*target.ContentItem, error) {
	c, err := r.repo.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, target.ErrContentNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content %d: %w", id, err)
	}
	return c, nil
}

// ContentCount returns the size of the content pool.
func (r *TargetRegistry) ContentCount(ctx context.Context) (int, error) {
	n, err := r.repo.CountContent(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count content: %w", err)
	}
	return n, nil
}

// RandomContent returns a uniformly random item from the pool.
func (r *TargetRegistry) RandomContent(ctx context.Context) (*target.ContentItem, error) {
	items, err := r.repo.ListContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyPool
	}
	return items[r.intn(len(items))], nil
}

// ImportTargets reads "name,id,kind" lines and adds every valid target.
// Lines that are malformed, have an unknown kind or a duplicate id are skipped.
func (r *TargetRegistry) ImportTargets(ctx context.Context, src io.Reader) (int, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	added := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				r.logger.WithError(err).Warn("Skipping malformed target line")
				continue
			}
			return added, fmt.Errorf("failed to read targets: %w", err)
		}
		if len(record) < 3 {
			continue
		}

		kind := target.Kind(strings.ToLower(strings.TrimSpace(record[2])))
		_, err = r.AddTarget(ctx, record[0], record[1], kind)
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrInvalidKind), errors.Is(err, ErrTargetAlreadyExists):
			r.logger.WithError(err).WithField("target_id", record[1]).Warn("Skipping target line")
		default:
			return added, err
		}
	}
	return added, nil
}

// ImportContent adds one content item per non-empty line.
func (r *TargetRegistry) ImportContent(ctx context.Context, src io.Reader) (int, error) {
	scanner := bufio.NewScanner(src)
	added := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := r.AddContent(ctx, line); err != nil {
			return added, err
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("failed to read content: %w", err)
	}
	return added, nil
}
