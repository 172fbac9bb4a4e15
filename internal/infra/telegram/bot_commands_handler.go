// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b *telebot.Bot, adminID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID(c))
		logCtx.Info("Processing /start command")

		if senderID(c) == adminID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Привет, Администратор %s! Я готов к работе. Используйте /help для списка команд.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("Привет! Я бот для отложенной рассылки сообщений. Управление доступно только администратору.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID(c))
		logCtx.Info("Processing /help command")

		if senderID(c) != adminID {
			logCtx.Info("User is not admin, sending restricted help.")
			return c.Send("Доступных команд для вас нет.")
		}

		return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Доступные команды Администратора:\n\n")
	helpText.WriteString("*Получатели*\n")
	helpText.WriteString("`/add_target <ID> <user|group|channel> [Название]`\n - Добавить получателя.\n")
	helpText.WriteString("`/remove_target <номер>`\n - Удалить получателя по номеру из списка.\n")
	helpText.WriteString("`/list_targets`\n - Показать получателей.\n")
	helpText.WriteString("Файл .csv/.txt с подписью `/import_targets`\n - Загрузить получателей (строки `название,ID,тип`).\n\n")
	helpText.WriteString("*Сообщения*\n")
	helpText.WriteString("`/add_content <текст>`\n - Добавить сообщение.\n")
	helpText.WriteString("`/add_photo <URL> [подпись]`\n - Добавить фото.\n")
	helpText.WriteString("`/remove_content <номер>`\n - Удалить сообщение по номеру из списка.\n")
	helpText.WriteString("`/list_content`\n - Показать сообщения.\n")
	helpText.WriteString("Файл .csv/.txt с подписью `/import_content`\n - Загрузить сообщения (по одному на строку).\n\n")
	helpText.WriteString("*Очередь*\n")
	helpText.WriteString("`/schedule <now|+30m|2025-01-02T15:04> <ID|*> <ID сообщения|*>`\n - Запланировать отправку. `*` означает выбор по ротации или случайное сообщение.\n")
	helpText.WriteString("`/reschedule <ID> <время>`\n - Перенести отправку.\n")
	helpText.WriteString("`/cancel <ID>`\n - Отменить отправку.\n")
	helpText.WriteString("`/queue [pending|sent|failed]`\n - Показать очередь.\n\n")
	helpText.WriteString("*Рассылка*\n")
	helpText.WriteString("`/cycle`\n - Состояние текущего цикла.\n")
	helpText.WriteString("`/reset_cycle`\n - Начать новый цикл.\n")
	helpText.WriteString("`/start_dispatcher`, `/stop_dispatcher`\n - Запустить или остановить рассылку.\n")
	helpText.WriteString("`/run_now`\n - Отправить всё, что пора отправить, прямо сейчас.\n")
	helpText.WriteString("`/status`\n - Общая сводка.\n\n")
	helpText.WriteString("`/help`\n - Показать это справочное сообщение.")
	return helpText.String()
}
