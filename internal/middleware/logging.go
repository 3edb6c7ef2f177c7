package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// AccessLog returns a middleware writing one structured entry per
// completed request.
func AccessLog(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithContext(c.Request.Context()).Info("request",
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("elapsed", time.Since(start)),
			observability.String("client_ip", c.ClientIP()),
		)
	}
}
