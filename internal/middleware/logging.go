package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"randomcoffee/internal/logging"
)

// RequestLog writes one structured line per request.
func RequestLog(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
