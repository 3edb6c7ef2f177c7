package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/vitaliydpua/appgw/internal/apierror"
	"github.com/vitaliydpua/appgw/internal/observability"
)

// Recovery returns a middleware that converts panics into the uniform
// 500 envelope without leaking internals.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					observability.Any("panic", recovered),
					observability.String("path", c.Request.URL.Path),
					observability.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					apierror.NewEnvelope(apierror.Internal("internal server error")))
			}
		}()
		c.Next()
	}
}
