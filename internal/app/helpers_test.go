package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"telegram_post_scheduler/internal/domain/platform"
	"telegram_post_scheduler/internal/domain/target"
	"telegram_post_scheduler/internal/infra/logger"
	"telegram_post_scheduler/internal/infra/memory"
)

type testEnv struct {
	store    *memory.Store
	registry *TargetRegistry
	queue    *DispatchQueue
	tracker  *CycleTracker
}

func newTestEnv() *testEnv {
	s := memory.New()
	log := logger.Discard()
	return &testEnv{
		store:    s,
		registry: NewTargetRegistry(s, log),
		queue:    NewDispatchQueue(s, log),
		tracker:  NewCycleTracker(s, log),
	}
}

func (e *testEnv) addTargets(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := e.registry.AddTarget(context.Background(), id, id, target.KindUser); err != nil {
			t.Fatalf("AddTarget(%s): %v", id, err)
		}
	}
}

func (e *testEnv) addContent(t *testing.T, bodies ...string) []*target.ContentItem {
	t.Helper()
	var out []*target.ContentItem
	for _, body := range bodies {
		c, err := e.registry.AddContent(context.Background(), body)
		if err != nil {
			t.Fatalf("AddContent(%q): %v", body, err)
		}
		out = append(out, c)
	}
	return out
}

// first always picks the lowest candidate, which keeps random choices deterministic.
func first(int) int { return 0 }

func last(n int) int { return n - 1 }

type sentMessage struct {
	TargetID string
	Body     string
}

// fakeClient records sends and fails for targets listed in failFor.
type fakeClient struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
	block   bool
}

var _ platform.Client = (*fakeClient)(nil)

func (f *fakeClient) Send(ctx context.Context, t *target.Target, content *target.ContentItem) (platform.Receipt, error) {
	if f.block {
		<-ctx.Done()
		return platform.Receipt{}, &platform.DeliveryError{TargetID: t.ID, Err: ctx.Err()}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[t.ID]; ok {
		return platform.Receipt{}, err
	}
	f.sent = append(f.sent, sentMessage{TargetID: t.ID, Body: content.Body})
	return platform.Receipt{MessageID: len(f.sent), SentAt: time.Now()}, nil
}

func (f *fakeClient) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		ids = append(ids, m.TargetID)
	}
	return ids
}
