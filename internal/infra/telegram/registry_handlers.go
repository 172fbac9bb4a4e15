package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telegram_post_scheduler/internal/app"
	"telegram_post_scheduler/internal/domain/target"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// /add_target <id> <user|group|channel> <name...>
func (o *Operator) handleAddTarget(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	args := c.Args()
	if len(args) < 2 {
		return c.Send("Неверный формат команды. Используйте: /add_target <ID> <user|group|channel> [Название]")
	}

	id := args[0]
	kind := target.Kind(strings.ToLower(args[1]))
	name := strings.Join(args[2:], " ")
	logger = logger.WithFields(logrus.Fields{"target_id": id, "kind": kind})

	t, err := o.Registry.AddTarget(ctx, name, id, kind)
	if err != nil {
		logWithError := logger.WithError(err)
		switch {
		case errors.Is(err, app.ErrInvalidKind):
			logWithError.Warn("Invalid target kind")
			return c.Send("Ошибка: тип должен быть user, group или channel.")
		case errors.Is(err, app.ErrTargetAlreadyExists):
			logWithError.Warn("Target already exists")
			return c.Send(fmt.Sprintf("Ошибка: получатель с ID %s уже существует.", id))
		default:
			logWithError.Error("Failed to add target")
			return c.Send(fmt.Sprintf("Произошла ошибка при добавлении получателя: %s", err.Error()))
		}
	}

	logger.Info("Target added successfully")
	return c.Send(fmt.Sprintf("Получатель %s (%s, %s) успешно добавлен.", t.DisplayName, t.ID, t.Kind))
}

// /remove_target <index>
func (o *Operator) handleRemoveTarget(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Неверный формат команды. Используйте: /remove_target <номер из /list_targets>")
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return c.Send("Ошибка: номер должен быть числом.")
	}

	removed, err := o.Registry.RemoveTarget(ctx, index)
	if err != nil {
		if errors.Is(err, app.ErrIndexOutOfRange) || errors.Is(err, app.ErrTargetNotFound) {
			logger.WithError(err).Warn("Target index not found")
			return c.Send("Получатель с таким номером не найден.")
		}
		logger.WithError(err).Error("Failed to remove target")
		return c.Send(fmt.Sprintf("Произошла ошибка при удалении получателя: %s", err.Error()))
	}

	logger.WithField("target_id", removed.ID).Info("Target removed successfully")
	return c.Send(fmt.Sprintf("Получатель %s (%s) удалён.", removed.DisplayName, removed.ID))
}

func (o *Operator) handleListTargets(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	targets, err := o.Registry.ListTargets(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list targets")
		return c.Send(fmt.Sprintf("Произошла ошибка при получении списка: %s", err.Error()))
	}
	if len(targets) == 0 {
		return c.Send("Список получателей пуст.")
	}

	var response strings.Builder
	response.WriteString("--- Получатели ---\n")
	for i, t := range targets {
		response.WriteString(fmt.Sprintf("%d. %s — %s (%s)\n", i+1, t.DisplayName, t.ID, t.Kind))
	}
	return c.Send(response.String())
}

// /add_content <text...>
func (o *Operator) handleAddContent(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	body := strings.TrimSpace(c.Message().Payload)
	item, err := o.Registry.AddContent(ctx, body)
	if err != nil {
		if errors.Is(err, app.ErrEmptyContent) {
			return c.Send("Неверный формат команды. Используйте: /add_content <текст>")
		}
		logger.WithError(err).Error("Failed to add content")
		return c.Send(fmt.Sprintf("Произошла ошибка при добавлении сообщения: %s", err.Error()))
	}
	logger.WithField("content_id", item.ID).Info("Content added successfully")
	return c.Send(fmt.Sprintf("Сообщение #%d добавлено.", item.ID))
}

// /add_photo <url> [caption...]
func (o *Operator) handleAddPhoto(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Send("Неверный формат команды. Используйте: /add_photo <URL> [подпись]")
	}
	item, err := o.Registry.AddPhotoContent(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		logger.WithError(err).Error("Failed to add photo content")
		return c.Send(fmt.Sprintf("Произошла ошибка при добавлении фото: %s", err.Error()))
	}
	logger.WithField("content_id", item.ID).Info("Photo content added successfully")
	return c.Send(fmt.Sprintf("Фото #%d добавлено.", item.ID))
}

// /remove_content <index>
func (o *Operator) handleRemoveContent(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Неверный формат команды. Используйте: /remove_content <номер из /list_content>")
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return c.Send("Ошибка: номер должен быть числом.")
	}

	removed, err := o.Registry.RemoveContent(ctx, index)
	if err != nil {
		if errors.Is(err, app.ErrIndexOutOfRange) || errors.Is(err, app.ErrContentNotFound) {
			return c.Send("Сообщение с таким номером не найдено.")
		}
		logger.WithError(err).Error("Failed to remove content")
		return c.Send(fmt.Sprintf("Произошла ошибка при удалении сообщения: %s", err.Error()))
	}
	logger.WithField("content_id", removed.ID).Info("Content removed successfully")
	return c.Send(fmt.Sprintf("Сообщение #%d удалено.", removed.ID))
}

func (o *Operator) handleListContent(ctx context.Context, c telebot.Context, logger *logrus.Entry) error {
	items, err := o.Registry.ListContent(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list content")
		return c.Send(fmt.Sprintf("Произошла ошибка при получении списка: %s", err.Error()))
	}
	if len(items) == 0 {
		return c.Send("Список сообщений пуст.")
	}

	var response strings.Builder
	response.WriteString("--- Сообщения ---\n")
	for i, item := range items {
		prefix := ""
		if item.HasMedia() {
			prefix = "[фото] "
		}
		response.WriteString(fmt.Sprintf("%d. #%d %s%s\n", i+1, item.ID, prefix, truncate(item.Body, 60)))
	}
	return c.Send(response.String())
}

// handleImport reads an uploaded .txt/.csv document. The caption selects the
// import: /import_targets (name,id,kind per line) or /import_content (one body per line).
func (o *Operator) handleImport(ctx context.Context, c telebot.Context, b *telebot.Bot, logger *logrus.Entry) error {
	doc := c.Message().Document
	if doc == nil {
		return nil
	}
	caption := strings.TrimSpace(c.Message().Caption)
	if caption != "/import_targets" && caption != "/import_content" {
		return c.Send("Чтобы импортировать файл, добавьте подпись /import_targets или /import_content.")
	}
	if !allowedImportFile(doc.FileName) {
		return c.Send("Недопустимый тип файла. Загрузите .txt или .csv.")
	}

	reader, err := b.File(&doc.File)
	if err != nil {
		logger.WithError(err).Error("Failed to download document")
		return c.Send("Не удалось скачать файл.")
	}
	defer reader.Close()

	var added int
	if caption == "/import_targets" {
		added, err = o.Registry.ImportTargets(ctx, reader)
	} else {
		added, err = o.Registry.ImportContent(ctx, reader)
	}
	logger = logger.WithFields(logrus.Fields{"import": caption, "added": added})
	if err != nil {
		logger.WithError(err).Error("Import failed")
		return c.Send(fmt.Sprintf("Импорт прерван после %d записей: %s", added, err.Error()))
	}
	logger.Info("Import finished")
	return c.Send(fmt.Sprintf("Успешно добавлено записей: %d.", added))
}

func allowedImportFile(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".csv")
}
