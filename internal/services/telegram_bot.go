package services

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
)

// maxAlbum is the Telegram limit for one media group.
const maxAlbum = 10

// BotAPI is the part of *tgbotapi.BotAPI used to send.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// TelegramSender renders message intents: photos first as an album, then the text with inline buttons.
type TelegramSender struct {
	api BotAPI
	log logging.Logger
}

func NewTelegramSender(api BotAPI, log logging.Logger) *TelegramSender {
	return &TelegramSender{api: api, log: log}
}

func (t *TelegramSender) Send(ctx context.Context, m models.Message) error {
	if t == nil || t.api == nil || m.ChatID == 0 {
		return fmt.Errorf("telegram send: no api or chat id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// A failed album does not stop the text.
	if err := t.sendPhotos(m.ChatID, m.Photos); err != nil {
		t.log.Warn(ctx, "[tg][album] send failed", "chat_id", m.ChatID, "err", err)
	}

	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.DisableWebPagePreview = true
	if len(m.Actions) > 0 {
		msg.ReplyMarkup = InlineKeyboard(m.Actions)
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	t.log.Debug(ctx, "[tg][send] ok", "chat_id", m.ChatID, "buttons", len(m.Actions))
	return nil
}

func (t *TelegramSender) sendPhotos(chatID int64, ids []string) error {
	switch {
	case len(ids) == 0:
		return nil
	case len(ids) == 1:
		_, err := t.api.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileID(ids[0])))
		return err
	}
	if len(ids) > maxAlbum {
		ids = ids[:maxAlbum]
	}
	media := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(id)))
	}
	_, err := t.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	return err
}

// InlineKeyboard turns action rows into an inline keyboard.
func InlineKeyboard(rows [][]models.Action) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, a := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data))
		}
		kb = append(kb, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}
