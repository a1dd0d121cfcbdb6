package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
	"randomcoffee/internal/services"
)

// profilePhotoLimit is how many Telegram profile photos "take from profile" looks at.
const profilePhotoLimit = models.MaxPhotos

// BotClient is the part of *tgbotapi.BotAPI the update handler calls directly.
type BotClient interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUserProfilePhotos(config tgbotapi.UserProfilePhotosConfig) (tgbotapi.UserProfilePhotos, error)
}

// EventHandler is the conversation core.
type EventHandler interface {
	Handle(ctx context.Context, ev models.Event) (*models.Outcome, error)
}

// BotHandler turns Telegram updates into events, runs them through the stage machine
// and delivers the outcome once the transaction is committed.
type BotHandler struct {
	api        BotClient
	machine    EventHandler
	dispatcher *services.Dispatcher
	log        logging.Logger
}

func NewBotHandler(api BotClient, machine EventHandler, dispatcher *services.Dispatcher, log logging.Logger) *BotHandler {
	return &BotHandler{api: api, machine: machine, dispatcher: dispatcher, log: log}
}

// SenderOf returns the Telegram user an update belongs to, 0 for updates the bot ignores.
func SenderOf(up tgbotapi.Update) int64 {
	switch {
	case up.Message != nil && up.Message.From != nil:
		return up.Message.From.ID
	case up.CallbackQuery != nil && up.CallbackQuery.From != nil:
		return up.CallbackQuery.From.ID
	}
	return 0
}

func (h *BotHandler) HandleUpdate(ctx context.Context, up tgbotapi.Update) {
	ev, ok := h.toEvent(ctx, up)
	if !ok {
		h.log.Debug(ctx, "[tg][update] skipped", "update_id", up.UpdateID)
		return
	}
	log := h.log.With("sender", ev.SenderID, "kind", string(ev.Kind))

	out, err := h.machine.Handle(ctx, ev)
	if err != nil {
		log.Error(ctx, "[tg][update] handle failed", "err", err)
		h.say(ctx, ev.SenderID, "Something went wrong. Please try again later.")
		return
	}
	for _, d := range services.Failed(h.dispatcher.Dispatch(ctx, out)) {
		log.Warn(ctx, "[tg][update] delivery failed", "delivery", string(d.Kind), "recipient", d.Recipient, "err", d.Err)
	}
}

func (h *BotHandler) toEvent(ctx context.Context, up tgbotapi.Update) (models.Event, bool) {
	if cq := up.CallbackQuery; cq != nil && cq.From != nil {
		h.answer(ctx, cq)
		ev := models.Event{
			SenderID: cq.From.ID,
			Username: cq.From.UserName,
			FullName: fullName(cq.From),
			Kind:     models.EventAction,
			Payload:  cq.Data,
		}
		if cq.Data == services.ActionPhotoFromProfile {
			ev.PhotoIDs = h.profilePhotos(ctx, cq.From.ID)
		}
		return ev, true
	}

	msg := up.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return models.Event{}, false
	}
	ev := models.Event{
		SenderID: msg.From.ID,
		Username: msg.From.UserName,
		FullName: fullName(msg.From),
	}
	switch {
	case msg.IsCommand():
		ev.Kind = models.EventCommand
		ev.Payload = msg.Command()
	case len(msg.Photo) > 0:
		ev.Kind = models.EventPhoto
		ev.PhotoIDs = []string{largest(msg.Photo).FileID}
	case msg.Text != "":
		ev.Kind = models.EventText
		ev.Payload = msg.Text
	default:
		return models.Event{}, false
	}
	return ev, true
}

// answer stops the client spinner and removes the pressed keyboard so it cannot be pressed twice.
func (h *BotHandler) answer(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := h.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.log.Warn(ctx, "[tg][callback] answer failed", "err", err)
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(cq.Message.Chat.ID, cq.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := h.api.Request(edit); err != nil {
		h.log.Debug(ctx, "[tg][callback] keyboard not removed", "err", err)
	}
}

// profilePhotos picks the largest size of the newest profile photos. Errors mean no photos.
func (h *BotHandler) profilePhotos(ctx context.Context, userID int64) []string {
	photos, err := h.api.GetUserProfilePhotos(tgbotapi.UserProfilePhotosConfig{UserID: userID, Limit: profilePhotoLimit})
	if err != nil {
		h.log.Warn(ctx, "[tg][photos] profile photos unavailable", "user_id", userID, "err", err)
		return nil
	}
	ids := make([]string, 0, len(photos.Photos))
	for _, sizes := range photos.Photos {
		if len(sizes) > 0 {
			ids = append(ids, largest(sizes).FileID)
		}
	}
	return ids
}

func (h *BotHandler) say(ctx context.Context, chatID int64, text string) {
	out := &models.Outcome{}
	out.Say(chatID, text)
	h.dispatcher.Dispatch(ctx, out)
}

func largest(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}
