package telegram

import (
	"context"
	"time"

	"telegram_post_scheduler/internal/app"
	"telegram_post_scheduler/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Ошибка: У вас нет прав для выполнения этой команды."

// DispatcherControl is the part of the dispatch scheduler exposed to operators.
type DispatcherControl interface {
	Start() error
	Stop() error
	State() scheduler.State
	RunNow(ctx context.Context) (app.RunStats, error)
}

// Operator holds the services behind the admin commands.
type Operator struct {
	Registry   *app.TargetRegistry
	Queue      *app.DispatchQueue
	Tracker    *app.CycleTracker
	Dispatcher DispatcherControl
	AdminID    int64
	Location   *time.Location
	Now        func() time.Time
}

func (o *Operator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Operator) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

// adminOnly rejects senders other than the configured admin.
func adminOnly(adminID int64, logger *logrus.Entry, next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if c.Sender() == nil || c.Sender().ID != adminID {
			logger.WithField("sender_id", senderID(c)).Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}
		return next(c)
	}
}

func senderID(c telebot.Context) int64 {
	if c.Sender() == nil {
		return 0
	}
	return c.Sender().ID
}

// RegisterOperatorHandlers registers every admin command on the bot.
func RegisterOperatorHandlers(ctx context.Context, b *telebot.Bot, op *Operator, baseLogger *logrus.Entry) {
	handle := func(endpoint interface{}, name string, fn func(context.Context, telebot.Context, *logrus.Entry) error) {
		handlerLogger := baseLogger.WithField("handler", name)
		b.Handle(endpoint, adminOnly(op.AdminID, handlerLogger, func(c telebot.Context) error {
			logCtx := handlerLogger.WithField("sender_id", senderID(c))
			logCtx.Info("Command received")
			return fn(ctx, c, logCtx)
		}))
	}

	handle("/add_target", "/add_target", op.handleAddTarget)
	handle("/remove_target", "/remove_target", op.handleRemoveTarget)
	handle("/list_targets", "/list_targets", op.handleListTargets)
	handle("/add_content", "/add_content", op.handleAddContent)
	handle("/add_photo", "/add_photo", op.handleAddPhoto)
	handle("/remove_content", "/remove_content", op.handleRemoveContent)
	handle("/list_content", "/list_content", op.handleListContent)
	handle(telebot.OnDocument, "document_import", func(ctx context.Context, c telebot.Context, l *logrus.Entry) error {
		return op.handleImport(ctx, c, b, l)
	})

	handle("/schedule", "/schedule", op.handleSchedule)
	handle("/reschedule", "/reschedule", op.handleReschedule)
	handle("/cancel", "/cancel", op.handleCancel)
	handle("/queue", "/queue", op.handleQueue)
	handle(&cancelButton, "cancel_button", op.handleCancelButton)

	handle("/cycle", "/cycle", op.handleCycle)
	handle("/reset_cycle", "/reset_cycle", op.handleResetCycle)
	handle("/start_dispatcher", "/start_dispatcher", op.handleStartDispatcher)
	handle("/stop_dispatcher", "/stop_dispatcher", op.handleStopDispatcher)
	handle("/run_now", "/run_now", op.handleRunNow)
	handle("/status", "/status", op.handleStatus)
}
