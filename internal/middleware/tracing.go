package middleware

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/gin-gonic/gin"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// Tracing returns a middleware opening a server span per request. The
// span covers the whole admission pipeline; handlers see the span
// context through the request context.
func Tracing(tracer *observability.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(ctx, spanName(c),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.full", r.URL.String()),
				attribute.String("user_agent.original", r.UserAgent()),
				attribute.String("server.address", r.Host),
			),
		)
		defer span.End()

		c.Request = r.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 400 {
			span.SetAttributes(attribute.Bool("error", true))
		}
	}
}

// spanName prefers the route template over the raw path so span names
// stay low-cardinality.
func spanName(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
