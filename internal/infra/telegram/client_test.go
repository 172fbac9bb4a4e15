package telegram

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram_post_scheduler/internal/domain/platform"
	"telegram_post_scheduler/internal/domain/target"

	"gopkg.in/telebot.v3"
)

type sentCall struct {
	to   string
	what interface{}
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(to telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{to: to.Recipient(), what: what})
	if f.err != nil {
		return nil, f.err
	}
	return &telebot.Message{ID: 77, Chat: &telebot.Chat{ID: -100500}}, nil
}

func TestTelebotAdapter_Send(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	adapter := NewTelebotAdapter(sender, 100, 10, 0)
	group := &target.Target{ID: "-100500", Kind: target.KindGroup}

	receipt, err := adapter.Send(context.Background(), group, &target.ContentItem{Body: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.MessageID != 77 || receipt.ChatID != -100500 {
		t.Errorf("receipt = %+v", receipt)
	}

	photo := &target.ContentItem{Body: "cat", MediaURL: sql.NullString{String: "https://example.com/cat.jpg", Valid: true}}
	if _, err := adapter.Send(context.Background(), group, photo); err != nil {
		t.Fatalf("Send(photo): %v", err)
	}

	if len(sender.calls) != 2 {
		t.Fatalf("sender got %d calls, want 2", len(sender.calls))
	}
	if sender.calls[0].to != "-100500" || sender.calls[0].what != "hello" {
		t.Errorf("text call = %+v", sender.calls[0])
	}
	p, ok := sender.calls[1].what.(*telebot.Photo)
	if !ok {
		t.Fatalf("photo call sent %T, want *telebot.Photo", sender.calls[1].what)
	}
	if p.FileURL != "https://example.com/cat.jpg" || p.Caption != "cat" {
		t.Errorf("photo = %+v", p)
	}
}

func TestTelebotAdapter_SendErrors(t *testing.T) {
	t.Parallel()
	user := &target.Target{ID: "1001", Kind: target.KindUser}

	apiErr := errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	adapter := NewTelebotAdapter(&fakeSender{err: apiErr}, 100, 10, 0)
	_, err := adapter.Send(context.Background(), user, &target.ContentItem{Body: "hi"})
	var deliveryErr *platform.DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("error = %v, want *platform.DeliveryError", err)
	}
	if deliveryErr.TargetID != "1001" || !errors.Is(err, apiErr) {
		t.Errorf("DeliveryError = %+v", deliveryErr)
	}

	block := make(chan struct{})
	defer close(block)
	slow := NewTelebotAdapter(&fakeSender{block: block}, 100, 10, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = slow.Send(ctx, user, &target.ContentItem{Body: "hi"})
	if !errors.As(err, &deliveryErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want delivery error wrapping deadline exceeded", err)
	}
}

func TestTelebotAdapter_NotifyAdmin(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	if err := NewTelebotAdapter(sender, 1, 1, 0).NotifyAdmin("ignored"); err != nil {
		t.Fatalf("NotifyAdmin without admin: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Errorf("sent %d messages without an admin configured", len(sender.calls))
	}

	if err := NewTelebotAdapter(sender, 1, 1, 4242).NotifyAdmin("report"); err != nil {
		t.Fatalf("NotifyAdmin: %v", err)
	}
	if len(sender.calls) != 1 || sender.calls[0].to != "4242" || sender.calls[0].what != "report" {
		t.Errorf("calls = %+v", sender.calls)
	}
}
