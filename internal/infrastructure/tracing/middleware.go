package tracing

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/SitePreview/backend/internal/shared/id"
)

const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing. Inbound trace
// and span headers are joined only when they hold well-formed ids.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(HeaderTraceID); id.IsValid(traceID) {
			ctx = WithTraceID(ctx, TraceID(traceID))
		}
		if parentID := c.GetHeader(HeaderSpanID); id.IsValid(parentID) {
			ctx = context.WithValue(ctx, spanIDKey, SpanID(parentID))
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}

		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.client_ip", c.ClientIP())

		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}

		span.Finish()
		tracer.Submit(span)
	}
}
