// Package middleware provides the gin middleware shared by every
// route: request identification, panic recovery, access logging and
// request metrics.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// RequestIDHeader is the header name for the request ID.
const RequestIDHeader = "X-Request-Id"

// RequestID returns a middleware that assigns each request an
// identifier, propagating one supplied by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
