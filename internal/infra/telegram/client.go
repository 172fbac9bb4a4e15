// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"time"

	"telegram_post_scheduler/internal/domain/platform"
	"telegram_post_scheduler/internal/domain/target"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

var _ platform.Client = (*TelebotAdapter)(nil)

// Sender is the part of *telebot.Bot the adapter needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// chatRecipient addresses a chat by numeric id or @username, both of which the
// Bot API accepts as chat_id.
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

// TelebotAdapter implements platform.Client using the gopkg.in/telebot.v3 library.
// Outgoing sends share one rate limiter.
type TelebotAdapter struct {
	bot     Sender
	limiter *rate.Limiter
	adminID int64
}

func NewTelebotAdapter(b Sender, ratePerSecond float64, burst int, adminID int64) *TelebotAdapter {
	if burst < 1 {
		burst = 1
	}
	return &TelebotAdapter{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		adminID: adminID,
	}
}

// Send delivers content to the target chat. Any failure, including a rate limiter
// wait cut short by ctx, is returned as *platform.DeliveryError.
func (tba *TelebotAdapter) Send(ctx context.Context, t *target.Target, content *target.ContentItem) (platform.Receipt, error) {
	if err := tba.limiter.Wait(ctx); err != nil {
		return platform.Receipt{}, &platform.DeliveryError{TargetID: t.ID, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	var what interface{} = content.Body
	if content.HasMedia() {
		what = &telebot.Photo{File: telebot.FromURL(content.MediaURL.String), Caption: content.Body}
	}

	type result struct {
		msg *telebot.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := tba.bot.Send(chatRecipient(t.ID), what, &telebot.SendOptions{})
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return platform.Receipt{}, &platform.DeliveryError{TargetID: t.ID, Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return platform.Receipt{}, &platform.DeliveryError{TargetID: t.ID, Err: res.err}
		}
		receipt := platform.Receipt{SentAt: time.Now().UTC()}
		if res.msg != nil {
			receipt.MessageID = res.msg.ID
			if res.msg.Chat != nil {
				receipt.ChatID = res.msg.Chat.ID
			}
		}
		return receipt, nil
	}
}

// SendMessage sends a text message to the specified chat.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	recipient := &telebot.User{ID: recipientChatID}
	_, err := tba.bot.Send(recipient, text, options)
	return err
}

// NotifyAdmin sends text to the configured admin chat.
func (tba *TelebotAdapter) NotifyAdmin(text string) error {
	if tba.adminID == 0 {
		return nil
	}
	return tba.SendMessage(tba.adminID, text, nil)
}
