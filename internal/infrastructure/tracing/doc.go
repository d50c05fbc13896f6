/*
Package tracing provides lightweight request tracing for the preview gateway.

Every inbound request gets a trace id (propagated from X-Trace-ID when the
caller sends one) and a span. The delivery orchestrator opens a child span
per rendering attempt, tagged with the strategy and outcome, so a proxy
failure followed by a screenshot fallback shows up as two sibling spans
under one trace.

# Usage

	tracer := tracing.New("preview-gateway", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "attempt.proxy")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("strategy", "proxy")

Spans are buffered (1000) and logged asynchronously by a collector goroutine.
*/
package tracing
