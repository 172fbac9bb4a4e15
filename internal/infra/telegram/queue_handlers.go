package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram_post_scheduler/internal/app"
	"telegram_post_scheduler/internal/domain/dispatch"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const queueListLimit = 20

var cancelButton = telebot.Btn{Unique: "cancel_item"}

// /schedule <when> <target|*> <content_id|*>
func (o *Operator) handleSchedule(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	args := c.Args()
	if len(args) != 3 {
		return c.Send("Неверный формат команды. Используйте: /schedule <now|+30m|2025-01-02T15:04> <ID получателя|*> <ID сообщения|*>")
	}

	dueAt, err := parseDueTime(args[0], o.now(), o.location())
	if err != nil {
		return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
	}
	contentID, err := parseContentArg(args[2])
	if err != nil {
		return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
	}
	targetID := parseTargetArg(args[1])

	if targetID != "" {
		if _, err := o.Registry.GetTarget(ctx, targetID); err != nil {
			if errors.Is(err, app.ErrTargetNotFound) {
				return c.Send(fmt.Sprintf("Получатель %s не найден.", targetID))
			}
			logger.WithError(err).Error("Failed to look up target")
			return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
		}
	}
	if contentID != 0 {
		if _, err := o.Registry.GetContent(ctx, contentID); err != nil {
			if errors.Is(err, app.ErrContentNotFound) {
				return c.Send(fmt.Sprintf("Сообщение #%d не найдено.", contentID))
			}
			logger.WithError(err).Error("Failed to look up content")
			return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
		}
	}

	item, err := o.Queue.Schedule(ctx, targetID, contentID, dueAt)
	if err != nil {
		if errors.Is(err, app.ErrInvalidDueTime) {
			return c.Send("Ошибка: некорректное время отправки.")
		}
		logger.WithError(err).Error("Failed to schedule item")
		return c.Send(fmt.Sprintf("Произошла ошибка при планировании: %s", err.Error()))
	}

	logger.WithField("item_id", item.ID).Info("Item scheduled successfully")

	markup := &telebot.ReplyMarkup{}
	btn := markup.Data("Отменить", cancelButton.Unique, strconv.FormatInt(item.ID, 10))
	markup.Inline(markup.Row(btn))
	return c.Send(fmt.Sprintf("Запланировано #%d на %s.", item.ID, formatTime(item.DueAt, o.location())), markup)
}

// /reschedule <item_id> <when>
func (o *Operator) handleReschedule(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	args := c.Args()
	if len(args) != 2 {
		return c.Send("Неверный формат команды. Используйте: /reschedule <ID> <now|+30m|2025-01-02T15:04>")
	}
	id, err := parseItemID(args[0])
	if err != nil {
		return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
	}
	dueAt, err := parseDueTime(args[1], o.now(), o.location())
	if err != nil {
		return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
	}

	logger = logger.WithField("item_id", id)
	if err := o.Queue.Reschedule(ctx, id, dueAt); err != nil {
		return c.Send(o.queueErrorText(logger, id, err))
	}
	logger.Info("Item rescheduled successfully")
	return c.Send(fmt.Sprintf("#%d перенесено на %s.", id, formatTime(dueAt, o.location())))
}

// /cancel <item_id>
func (o *Operator) handleCancel(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Неверный формат команды. Используйте: /cancel <ID>")
	}
	id, err := parseItemID(args[0])
	if err != nil {
		return c.Send(fmt.Sprintf("Ошибка: %s", err.Error()))
	}

	logger = logger.WithField("item_id", id)
	if err := o.Queue.Cancel(ctx, id); err != nil {
		return c.Send(o.queueErrorText(logger, id, err))
	}
	logger.Info("Item cancelled successfully")
	return c.Send(fmt.Sprintf("#%d отменено.", id))
}

func (o *Operator) handleCancelButton(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	id, err := parseItemID(c.Callback().Data)
	if err != nil {
		logger.WithError(err).WithField("data", c.Callback().Data).Warn("Invalid cancel callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки ответа."})
	}

	logger = logger.WithField("item_id", id)
	if err := o.Queue.Cancel(ctx, id); err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: o.queueErrorText(logger, id, err)})
	}
	logger.Info("Item cancelled from button")
	return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("#%d отменено.", id)})
}

// /queue [pending|sent|failed]
func (o *Operator) handleQueue(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	status := dispatch.StatusPending
	if args := c.Args(); len(args) > 0 {
		status = dispatch.Status(strings.ToLower(args[0]))
		if !status.Valid() {
			return c.Send("Неверный аргумент. Используйте pending, sent или failed.")
		}
	}

	items, err := o.Queue.List(ctx, status, queueListLimit)
	if err != nil {
		logger.WithError(err).Error("Failed to list queue")
		return c.Send(fmt.Sprintf("Произошла ошибка при получении очереди: %s", err.Error()))
	}
	if len(items) == 0 {
		return c.Send(fmt.Sprintf("Нет записей со статусом %s.", status))
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("--- Очередь (%s) ---\n", status))
	for _, item := range items {
		response.WriteString(formatItem(item, o.location()))
		response.WriteString("\n")
	}
	return c.Send(response.String())
}

func (o *Operator) queueErrorText(logger *logrus.Entry, id int64, err error) string {
	switch {
	case errors.Is(err, app.ErrItemNotFound):
		logger.WithError(err).Warn("Item not found")
		return fmt.Sprintf("#%d не найдено.", id)
	case errors.Is(err, app.ErrInvalidTransition):
		logger.WithError(err).Warn("Item is not pending")
		return fmt.Sprintf("#%d уже обработано и не может быть изменено.", id)
	case errors.Is(err, app.ErrInvalidDueTime):
		return "Ошибка: некорректное время отправки."
	default:
		logger.WithError(err).Error("Queue operation failed")
		return fmt.Sprintf("Произошла ошибка: %s", err.Error())
	}
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}

func formatItem(item *dispatch.ScheduledItem, loc *time.Location) string {
	targetText := "*"
	if item.Bound() {
		targetText = item.TargetID.String
	} else if item.DeliveredTo.Valid {
		targetText = "* → " + item.DeliveredTo.String
	}
	contentText := "*"
	if item.ContentID.Valid {
		contentText = fmt.Sprintf("#%d", item.ContentID.Int64)
	}

	line := fmt.Sprintf("#%d %s → %s, сообщение %s [%s]", item.ID, formatTime(item.DueAt, loc), targetText, contentText, item.Status)
	if item.ErrorDetail.Valid {
		line += ": " + truncate(item.ErrorDetail.String, 80)
	}
	return line
}
