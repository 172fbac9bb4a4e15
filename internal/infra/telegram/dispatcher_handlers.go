package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telegram_post_scheduler/internal/domain/target"
	"telegram_post_scheduler/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func (o *Operator) handleCycle(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	cycle, err := o.Tracker.Status(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to get cycle status")
		return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
	}
	targets, err := o.Registry.ListTargets(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list targets")
		return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("Цикл %d: отправлено %d из %d получателей.\n", cycle.Number, countServed(cycle.SentTargetIDs, targets), len(targets)))
	for _, id := range cycle.SentTargetIDs {
		response.WriteString(fmt.Sprintf("✓ %s\n", id))
	}
	return c.Send(response.String())
}

func (o *Operator) handleResetCycle(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	number, err := o.Tracker.ResetCycle(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to reset cycle")
		return c.Send(fmt.Sprintf("Произошла ошибка при сбросе цикла: %s", err.Error()))
	}
	logger.WithField("cycle", number).Info("Cycle reset successfully")
	return c.Send(fmt.Sprintf("Начат новый цикл: %d.", number))
}

func (o *Operator) handleStartDispatcher(_ context.Context, c telebot.Context, logger *logrus.Entry) error {
	if err := o.Dispatcher.Start(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			return c.Send("Рассылка уже запущена.")
		}
		logger.WithError(err).Error("Failed to start dispatcher")
		return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
	}
	return c.Send("Рассылка запущена.")
}

func (o *Operator) handleStopDispatcher(_ context.Context, c telebot.Context, logger *logrus.Entry) error {
	if err := o.Dispatcher.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrNotRunning) {
			return c.Send("Рассылка не запущена.")
		}
		logger.WithError(err).Error("Failed to stop dispatcher")
		return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
	}
	return c.Send("Рассылка остановлена.")
}

func (o *Operator) handleRunNow(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	stats, err := o.Dispatcher.RunNow(ctx)
	if err != nil {
		logger.WithError(err).Error("Manual dispatch run failed")
		return c.Send(fmt.Sprintf("Произошла ошибка при отправке: %s", err.Error()))
	}
	return c.Send(fmt.Sprintf("Готово: обработано %d, отправлено %d, ошибок %d.", stats.Attempted, stats.Sent, stats.Failed))
}

func (o *Operator) handleStatus(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	counts, err := o.Queue.Counts(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to count queue")
		return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
	}
	cycle, err := o.Tracker.CurrentCycle(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to get current cycle")
		return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
	}

	return c.Send(fmt.Sprintf(
		"Рассылка: %s\nЦикл: %d\nВ очереди: %d, отправлено: %d, ошибок: %d",
		stateText(o.Dispatcher.State()), cycle, counts.Pending, counts.Sent, counts.Failed,
	))
}

func stateText(s scheduler.State) string {
	switch s {
	case scheduler.StateRunning:
		return "запущена"
	case scheduler.StateStopping:
		return "останавливается"
	default:
		return "остановлена"
	}
}

func countServed(sent []string, targets []*target.Target) int {
	served := make(map[string]struct{}, len(sent))
	for _, id := range sent {
		served[id] = struct{}{}
	}
	n := 0
	for _, t := range targets {
		if _, ok := served[t.ID]; ok {
			n++
		}
	}
	return n
}
