package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bindUpdate decodes the webhook body. An update without id is treated as malformed.
func bindUpdate(c *gin.Context) (tgbotapi.Update, error) {
	var up tgbotapi.Update
	if err := c.ShouldBindJSON(&up); err != nil {
		return up, fmt.Errorf("bind update: %w", err)
	}
	if up.UpdateID == 0 {
		return up, fmt.Errorf("bind update: no update_id")
	}
	return up, nil
}
