// internal/middleware/logging_middleware.go
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"escpos-service/internal/utils"
)

// LoggingMiddleware logs every request except websocket upgrades, which
// would report the lifetime of the connection.
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		if c.Writer.Status() == http.StatusSwitchingProtocols {
			return
		}

		requestLogger := logger
		if requestID := c.GetString("request_id"); requestID != "" {
			requestLogger = &utils.ServiceLogger{Logger: utils.LoggerWithRequestID(logger.Logger, requestID)}
		}
		requestLogger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(startTime),
		)
	}
}
