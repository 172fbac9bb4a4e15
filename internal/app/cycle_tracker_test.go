package app

import (
	"context"
	"strings"
	"testing"

	"telegram_post_scheduler/internal/domain/target"
)

func TestCycleTracker_UnsentTargets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv()
	env.addTargets(t, "A", "B")
	all, _ := env.registry.ListTargets(ctx)

	unsent, cycle, err := env.tracker.UnsentTargets(ctx, 0, all)
	if err != nil {
		t.Fatalf("UnsentTargets: %v", err)
	}
	if cycle != 0 || len(unsent) != 2 {
		t.Fatalf("UnsentTargets = %v in cycle %d, want [A B] in cycle 0", ids(unsent), cycle)
	}

	if err := env.tracker.MarkSent(ctx, 0, "A"); err != nil {
		t.Fatalf("MarkSent(A): %v", err)
	}
	unsent, cycle, _ = env.tracker.UnsentTargets(ctx, 0, all)
	if got := strings.Join(ids(unsent), ","); got != "B" || cycle != 0 {
		t.Fatalf("UnsentTargets = [%s] in cycle %d, want [B] in cycle 0", got, cycle)
	}

	if err := env.tracker.MarkSent(ctx, 0, "B"); err != nil {
		t.Fatalf("MarkSent(B): %v", err)
	}
	unsent, cycle, _ = env.tracker.UnsentTargets(ctx, 0, all)
	if got := strings.Join(ids(unsent), ","); got != "A,B" || cycle != 1 {
		t.Fatalf("after full coverage UnsentTargets = [%s] in cycle %d, want [A B] in cycle 1", got, cycle)
	}
	current, err := env.tracker.CurrentCycle(ctx)
	if err != nil {
		t.Fatalf("CurrentCycle: %v", err)
	}
	if current != 1 {
		t.Errorf("CurrentCycle = %d, want 1", current)
	}

	// Asking again about the finished cycle does not start yet another one.
	if _, cycle, _ = env.tracker.UnsentTargets(ctx, 1, all); cycle != 1 {
		t.Errorf("UnsentTargets(1) cycle = %d, want 1", cycle)
	}
}

func TestCycleTracker_UnsentTargets_EmptyRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv()

	for _, all := range [][]*target.Target{nil, {}} {
		unsent, cycle, err := env.tracker.UnsentTargets(ctx, 0, all)
		if err != nil {
			t.Fatalf("UnsentTargets: %v", err)
		}
		if len(unsent) != 0 || cycle != 0 {
			t.Errorf("UnsentTargets(empty) = %v in cycle %d, want none in cycle 0", unsent, cycle)
		}
	}
	if current, _ := env.tracker.CurrentCycle(ctx); current != 0 {
		t.Errorf("CurrentCycle = %d, want 0 (no rollover on empty registry)", current)
	}
}

func TestCycleTracker_MarkSentIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv()

	for i := 0; i < 3; i++ {
		if err := env.tracker.MarkSent(ctx, 0, "A"); err != nil {
			t.Fatalf("MarkSent #%d: %v", i, err)
		}
	}
	status, err := env.tracker.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.SentTargetIDs) != 1 || status.SentTargetIDs[0] != "A" {
		t.Errorf("SentTargetIDs = %v, want [A]", status.SentTargetIDs)
	}
}

func TestCycleTracker_ResetCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv()

	if err := env.tracker.MarkSent(ctx, 0, "A"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	for want := int64(1); want <= 2; want++ {
		got, err := env.tracker.ResetCycle(ctx)
		if err != nil {
			t.Fatalf("ResetCycle: %v", err)
		}
		if got != want {
			t.Errorf("ResetCycle = %d, want %d", got, want)
		}
	}

	status, _ := env.tracker.Status(ctx)
	if status.Number != 2 || len(status.SentTargetIDs) != 0 {
		t.Errorf("Status = cycle %d with %v, want cycle 2 with no deliveries", status.Number, status.SentTargetIDs)
	}
}
