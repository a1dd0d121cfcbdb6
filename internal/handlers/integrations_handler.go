package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"randomcoffee/internal/logging"
)

// UpdateSink accepts an update for asynchronous processing without waiting. False means it
// could not be queued.
type UpdateSink func(ctx context.Context, up tgbotapi.Update) bool

// IntegrationsHandler serves the Telegram webhook.
type IntegrationsHandler struct {
	sink UpdateSink
	log  logging.Logger
}

func NewIntegrationsHandler(sink UpdateSink, log logging.Logger) *IntegrationsHandler {
	return &IntegrationsHandler{sink: sink, log: log}
}

// Webhook queues the update and answers at once. Malformed bodies get 200 so Telegram does not
// retry them; a full queue gets 503 so it does.
func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	up, err := bindUpdate(c)
	if err != nil {
		h.log.Warn(c.Request.Context(), "[tg][webhook] malformed update", "err", err)
		c.Status(http.StatusOK)
		return
	}
	if !h.sink(c.Request.Context(), up) {
		h.log.Warn(c.Request.Context(), "[tg][webhook] queue unavailable", "update_id", up.UpdateID)
		errorJSON(c, http.StatusServiceUnavailable, "busy")
		return
	}
	c.Status(http.StatusOK)
}

func (h *IntegrationsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
