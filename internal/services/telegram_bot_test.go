package services

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
)

type fakeBotAPI struct {
	sent     []tgbotapi.Chattable
	albums   []tgbotapi.MediaGroupConfig
	albumErr error
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBotAPI) SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	f.albums = append(f.albums, c)
	return nil, f.albumErr
}

func TestTelegramSender_TextWithKeyboard(t *testing.T) {
	api := &fakeBotAPI{}
	s := NewTelegramSender(api, logging.Nop())

	require.NoError(t, s.Send(context.Background(), models.Message{
		ChatID:  10,
		Text:    "hi",
		Actions: codeWaitActions(),
	}))

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(10), msg.ChatID)
	assert.Equal(t, "hi", msg.Text)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, ActionOTPResend, *kb.InlineKeyboard[0][0].CallbackData)
}

func TestTelegramSender_SinglePhotoThenText(t *testing.T) {
	api := &fakeBotAPI{}
	s := NewTelegramSender(api, logging.Nop())

	require.NoError(t, s.Send(context.Background(), models.Message{ChatID: 10, Text: "preview", Photos: []string{"f1"}}))
	require.Len(t, api.sent, 2)
	_, isPhoto := api.sent[0].(tgbotapi.PhotoConfig)
	assert.True(t, isPhoto)
	assert.Empty(t, api.albums)
}

func TestTelegramSender_AlbumFailureStillSendsText(t *testing.T) {
	api := &fakeBotAPI{albumErr: errors.New("bad file id")}
	s := NewTelegramSender(api, logging.Nop())

	require.NoError(t, s.Send(context.Background(), models.Message{ChatID: 10, Text: "preview", Photos: []string{"f1", "f2"}}))
	require.Len(t, api.albums, 1)
	assert.Len(t, api.albums[0].Media, 2)
	require.Len(t, api.sent, 1)
}

func TestTelegramSender_RequiresChat(t *testing.T) {
	s := NewTelegramSender(&fakeBotAPI{}, logging.Nop())
	assert.Error(t, s.Send(context.Background(), models.Message{Text: "x"}))
}
