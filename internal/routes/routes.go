package routes

import (
	"github.com/gin-gonic/gin"

	"randomcoffee/internal/handlers"
	"randomcoffee/internal/logging"
	"randomcoffee/internal/middleware"
)

const WebhookPath = "/telegram/webhook"

func SetupRoutes(r *gin.Engine, integrations *handlers.IntegrationsHandler, webhookSecret string, log logging.Logger) *gin.Engine {
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog(log))

	// ---- public
	r.GET("/healthz", integrations.Health)

	// ---- telegram
	tg := r.Group("/", middleware.WebhookSecret(webhookSecret))
	{
		tg.POST(WebhookPath, integrations.Webhook)
	}
	return r
}
