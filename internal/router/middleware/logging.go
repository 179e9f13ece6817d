package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// LoggingMiddleware stores a request-scoped logger under "logger" and logs every finished request.
func LoggingMiddleware(log *zap.Logger) func(c *ginext.Context) {
	return func(c *ginext.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLog := log.With(zap.String("request_id", requestID))
		c.Set("logger", reqLog)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		reqLog.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
