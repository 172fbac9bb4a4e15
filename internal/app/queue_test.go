package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram_post_scheduler/internal/domain/dispatch"
)

func TestDispatchQueue_Schedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv()

	if _, err := env.queue.Schedule(ctx, "A", 1, time.Time{}); !errors.Is(err, ErrInvalidDueTime) {
		t.Errorf("Schedule(zero time) error = %v, want %v", err, ErrInvalidDueTime)
	}

	due := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	bound, err := env.queue.Schedule(ctx, "A", 7, due)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if bound.Status != dispatch.StatusPending {
		t.Errorf("Status = %q, want %q", bound.Status, dispatch.StatusPending)
	}
	if !bound.Bound() || bound.TargetID.String != "A" {
		t.Errorf("TargetID = %+v, want A", bound.TargetID)
	}
	if !bound.ContentID.Valid || bound.ContentID.Int64 != 7 {
		t.Errorf("ContentID = %+v, want 7", bound.ContentID)
	}
	if !bound.DueAt.Equal(due) || bound.DueAt.Location() != time.UTC {
		t.Errorf("DueAt = %v, want %v in UTC", bound.DueAt, due)
	}

	unbound, err := env.queue.Schedule(ctx, "", 0, due)
	if err != nil {
		t.Fatalf("Schedule(unbound): %v", err)
	}
	if unbound.Bound() || unbound.ContentID.Valid {
		t.Errorf("unbound item = %+v, want no target and no content", unbound)
	}
}

func TestDispatchQueue_DueItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	schedule := func(dueAt time.Time) int64 {
		t.Helper()
		item, err := env.queue.Schedule(ctx, "", 0, dueAt)
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		return item.ID
	}

	future := schedule(now.Add(time.Hour))
	atNow1 := schedule(now)
	old := schedule(now.Add(-2 * time.Hour))
	atNow2 := schedule(now)
	sent := schedule(now.Add(-3 * time.Hour))
	if err := env.queue.MarkSent(ctx, sent, "A"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	due, err := env.queue.DueItems(ctx, now)
	if err != nil {
		t.Fatalf("DueItems: %v", err)
	}
	want := []int64{old, atNow1, atNow2}
	if len(due) != len(want) {
		t.Fatalf("DueItems returned %d items, want %d", len(due), len(want))
	}
	for i, item := range due {
		if item.ID != want[i] {
			t.Errorf("due[%d].ID = %d, want %d", i, item.ID, want[i])
		}
		if item.ID == future {
			t.Errorf("future item %d reported as due", future)
		}
	}
}

func TestDispatchQueue_Transitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	ops := []struct {
		name string
		run  func(q *DispatchQueue, id int64) error
	}{
		{name: "MarkSent", run: func(q *DispatchQueue, id int64) error { return q.MarkSent(ctx, id, "A") }},
		{name: "MarkFailed", run: func(q *DispatchQueue, id int64) error { return q.MarkFailed(ctx, id, "boom") }},
		{name: "Cancel", run: func(q *DispatchQueue, id int64) error { return q.Cancel(ctx, id) }},
		{name: "Reschedule", run: func(q *DispatchQueue, id int64) error { return q.Reschedule(ctx, id, now.Add(time.Hour)) }},
	}
	finishers := []struct {
		name   string
		finish func(q *DispatchQueue, id int64) error
	}{
		{name: "sent", finish: func(q *DispatchQueue, id int64) error { return q.MarkSent(ctx, id, "A") }},
		{name: "failed", finish: func(q *DispatchQueue, id int64) error { return q.MarkFailed(ctx, id, "boom") }},
	}

	for _, fin := range finishers {
		for _, op := range ops {
			op := op
			t.Run(fin.name+"/"+op.name, func(t *testing.T) {
				t.Parallel()
				env := newTestEnv()
				item, err := env.queue.Schedule(ctx, "A", 0, now)
				if err != nil {
					t.Fatalf("Schedule: %v", err)
				}
				if err := fin.finish(env.queue, item.ID); err != nil {
					t.Fatalf("finish: %v", err)
				}
				before, _ := env.queue.Get(ctx, item.ID)

				if err := op.run(env.queue, item.ID); !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("%s on %s item error = %v, want %v", op.name, fin.name, err, ErrInvalidTransition)
				}
				after, err := env.queue.Get(ctx, item.ID)
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				if after.Status != before.Status || !after.DueAt.Equal(before.DueAt) {
					t.Errorf("item changed: before %+v, after %+v", before, after)
				}
			})
		}
	}

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv()
		for _, op := range ops {
			op := op
			if err := op.run(env.queue, 999); !errors.Is(err, ErrItemNotFound) {
				t.Errorf("%s(999) error = %v, want %v", op.name, err, ErrItemNotFound)
			}
		}
	})
}

func TestDispatchQueue_CancelAndReschedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cancelled, _ := env.queue.Schedule(ctx, "A", 0, now)
	if err := env.queue.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := env.queue.Get(ctx, cancelled.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Get(cancelled) error = %v, want %v", err, ErrItemNotFound)
	}

	later, _ := env.queue.Schedule(ctx, "A", 0, now.Add(time.Hour))
	if err := env.queue.Reschedule(ctx, later.ID, time.Time{}); !errors.Is(err, ErrInvalidDueTime) {
		t.Errorf("Reschedule(zero) error = %v, want %v", err, ErrInvalidDueTime)
	}
	if err := env.queue.Reschedule(ctx, later.ID, now.Add(-time.Minute)); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	due, _ := env.queue.DueItems(ctx, now)
	if len(due) != 1 || due[0].ID != later.ID {
		t.Errorf("DueItems after reschedule = %d items, want item %d", len(due), later.ID)
	}

	if err := env.queue.MarkFailed(ctx, later.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	counts, err := env.queue.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts != (dispatch.StatusCounts{Failed: 1}) {
		t.Errorf("Counts = %+v, want one failed", counts)
	}
	failed, _ := env.queue.List(ctx, dispatch.StatusFailed, 10)
	if len(failed) != 1 || failed[0].ErrorDetail.String != "boom" {
		t.Errorf("List(failed) = %+v", failed)
	}
}
