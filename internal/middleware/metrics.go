package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// unmatchedRoute is the route label for requests that match no
// registered route, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics returns a middleware recording request counts and durations
// labeled by route template.
func Metrics(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
