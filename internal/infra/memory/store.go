// Package memory provides an in-memory implementation of the target, queue and
// cycle repositories. Safe for concurrent access. Intended for tests and local
// development; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"telegram_post_scheduler/internal/domain/dispatch"
	"telegram_post_scheduler/internal/domain/target"
)

var (
	_ target.Repository        = (*Store)(nil)
	_ dispatch.QueueRepository = (*Store)(nil)
	_ dispatch.CycleRepository = (*Store)(nil)
)

// Store keeps every entity in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	targets     []*target.Target // creation order
	content     []*target.ContentItem
	nextContent int64

	items    map[int64]*dispatch.ScheduledItem
	nextItem int64

	cycles map[int64]*dispatch.Cycle

	now func() time.Time
}

// New returns an empty Store with cycle 0 already started.
func New() *Store {
	s := &Store{
		items:  make(map[int64]*dispatch.ScheduledItem),
		cycles: make(map[int64]*dispatch.Cycle),
		now:    time.Now,
	}
	s.cycles[0] = &dispatch.Cycle{Number: 0, StartedAt: s.now().UTC()}
	return s
}

// ──────────────────────────────────────────────────
// Targets
// ──────────────────────────────────────────────────

func (s *Store) CreateTarget(_ context.Context, t *target.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.targets {
		if existing.ID == t.ID {
			return target.ErrDuplicateID
		}
	}
	t.CreatedAt = s.now().UTC()
	cp := *t
	s.targets = append(s.targets, &cp)
	return nil
}

func (s *Store) GetTarget(_ context.Context, id string) (*target.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.targets {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, target.ErrNotFound
}

func (s *Store) DeleteTarget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.targets {
		if t.ID == id {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return nil
		}
	}
	return target.ErrNotFound
}

func (s *Store) ListTargets(_ context.Context) ([]*target.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*target.Target, 0, len(s.targets))
	for _, t := range s.targets {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Content pool
// ──────────────────────────────────────────────────

func (s *Store) CreateContent(_ context.Context, c *target.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextContent++
	c.ID = s.nextContent
	c.CreatedAt = s.now().UTC()
	cp := *c
	s.content = append(s.content, &cp)
	return nil
}

func (s *Store) GetContent(_ context.Context, id int64) (*target.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.content {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, target.ErrContentNotFound
}

func (s *Store) DeleteContent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.content {
		if c.ID == id {
			s.content = append(s.content[:i], s.content[i+1:]...)
			return nil
		}
	}
	return target.ErrContentNotFound
}

func (s *Store) ListContent(_ context.Context) ([]*target.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*target.ContentItem, 0, len(s.content))
	for _, c := range s.content {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) CountContent(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.content), nil
}

// ──────────────────────────────────────────────────
// Queue
// ──────────────────────────────────────────────────

func (s *Store) CreateItem(_ context.Context, item *dispatch.ScheduledItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItem++
	now := s.now().UTC()
	item.ID = s.nextItem
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = dispatch.StatusPending
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *Store) GetItem(_ context.Context, id int64) (*dispatch.ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, dispatch.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *Store) ListDue(_ context.Context, now time.Time) ([]*dispatch.ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*dispatch.ScheduledItem
	for _, item := range s.items {
		if item.Status == dispatch.StatusPending && !item.DueAt.After(now) {
			cp := *item
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].DueAt.Before(due[j].DueAt)
	})
	return due, nil
}

// ListItems returns the newest items first, like the Postgres store.
func (s *Store) ListItems(_ context.Context, status dispatch.Status, limit int) ([]*dispatch.ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*dispatch.ScheduledItem
	for _, item := range s.items {
		if status != "" && item.Status != status {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountByStatus(_ context.Context) (dispatch.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts dispatch.StatusCounts
	for _, item := range s.items {
		switch item.Status {
		case dispatch.StatusPending:
			counts.Pending++
		case dispatch.StatusSent:
			counts.Sent++
		case dispatch.StatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (s *Store) MarkSent(_ context.Context, id int64, deliveredTo string) error {
	return s.updatePending(id, func(item *dispatch.ScheduledItem) {
		item.Status = dispatch.StatusSent
		item.DeliveredTo.String = deliveredTo
		item.DeliveredTo.Valid = deliveredTo != ""
	})
}

func (s *Store) MarkFailed(_ context.Context, id int64, detail string) error {
	return s.updatePending(id, func(item *dispatch.ScheduledItem) {
		item.Status = dispatch.StatusFailed
		item.ErrorDetail.String = detail
		item.ErrorDetail.Valid = true
	})
}

func (s *Store) ReschedulePending(_ context.Context, id int64, dueAt time.Time) error {
	return s.updatePending(id, func(item *dispatch.ScheduledItem) {
		item.DueAt = dueAt
	})
}

func (s *Store) DeletePending(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return dispatch.ErrItemNotFound
	}
	if item.Status != dispatch.StatusPending {
		return dispatch.ErrNotPending
	}
	delete(s.items, id)
	return nil
}

func (s *Store) updatePending(id int64, mutate func(*dispatch.ScheduledItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return dispatch.ErrItemNotFound
	}
	if item.Status != dispatch.StatusPending {
		return dispatch.ErrNotPending
	}
	mutate(item)
	item.UpdatedAt = s.now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// Cycles
// ──────────────────────────────────────────────────

func (s *Store) CurrentCycle(_ context.Context) (*dispatch.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var current *dispatch.Cycle
	for _, c := range s.cycles {
		if current == nil || c.Number > current.Number {
			current = c
		}
	}
	if current == nil {
		return nil, dispatch.ErrCycleNotFound
	}
	return copyCycle(current), nil
}

// GetCycle returns an empty cycle for numbers that were never started, so
// callers can ask about a cycle before its first delivery.
func (s *Store) GetCycle(_ context.Context, number int64) (*dispatch.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cycles[number]
	if !ok {
		return &dispatch.Cycle{Number: number}, nil
	}
	return copyCycle(c), nil
}

func (s *Store) StartCycle(_ context.Context, number int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cycles[number]; !ok {
		s.cycles[number] = &dispatch.Cycle{Number: number, StartedAt: s.now().UTC()}
	}
	return nil
}

func (s *Store) AddDelivery(_ context.Context, number int64, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cycles[number]
	if !ok {
		c = &dispatch.Cycle{Number: number, StartedAt: s.now().UTC()}
		s.cycles[number] = c
	}
	if !c.Has(targetID) {
		c.SentTargetIDs = append(c.SentTargetIDs, targetID)
	}
	return nil
}

func copyCycle(c *dispatch.Cycle) *dispatch.Cycle {
	cp := *c
	cp.SentTargetIDs = append([]string(nil), c.SentTargetIDs...)
	return &cp
}
