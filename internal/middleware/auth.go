package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecretTokenHeader carries the secret_token registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// public paths never require the secret
func isPublicPath(path string) bool {
	return strings.HasPrefix(path, "/healthz")
}

// WebhookSecret rejects requests whose secret header does not match. An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}
		got := strings.TrimSpace(c.GetHeader(SecretTokenHeader))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
			return
		}
		c.Next()
	}
}
