package preview

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/SitePreview/backend/internal/shared/id"
	"go.uber.org/zap"
)

// ErrNotStarted is returned when a failure is reported for a session
// that never ran.
var ErrNotStarted = errors.New("preview has not started")

// DocumentSource runs the proxy strategy.
type DocumentSource interface {
	Document(ctx context.Context, t Target) (*Output, error)
}

// ImageSource runs the screenshot strategy.
type ImageSource interface {
	Image(ctx context.Context, t Target) (*Output, error)
}

// Orchestrator drives sessions through the delivery state machine.
// It keeps no state of its own between calls.
type Orchestrator struct {
	proxy   DocumentSource
	capture ImageSource
	tracer  *tracing.Tracer
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewOrchestrator creates an orchestrator. tracer and metrics may be nil.
func NewOrchestrator(proxy DocumentSource, capture ImageSource, tracer *tracing.Tracer, metrics *monitoring.Metrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		proxy:   proxy,
		capture: capture,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Start runs a new session to Ready or Failed. A session that has already
// started is left alone and its current output is not recomputed.
func (o *Orchestrator) Start(ctx context.Context, s *Session) error {
	s.run.Lock()
	defer s.run.Unlock()

	if s.State() != StateIdle {
		return nil
	}

	if s.Mode == ModeScreenshot {
		// the screenshot is the only strategy, so there is nothing to fall back to
		s.claimFallback()
		return o.tryScreenshot(ctx, s)
	}

	perr := o.tryProxy(ctx, s)
	if perr == nil {
		return nil
	}
	if perr.Terminal() || s.Mode == ModeProxy {
		s.fail(perr)
		return perr
	}
	return o.fallback(ctx, s, perr)
}

// ReportFailure handles a caller-reported render failure, such as an
// iframe error event for a proxied page. The session moves to the
// screenshot strategy if it has not used its fallback, and to Failed
// otherwise.
func (o *Orchestrator) ReportFailure(ctx context.Context, s *Session, reason string) error {
	s.run.Lock()
	defer s.run.Unlock()

	state, method, serr := s.snapshot()
	switch {
	case state == StateIdle:
		return ErrNotStarted
	case state == StateFailed:
		return serr
	}

	o.logger.Info("Client reported render failure",
		zap.String("preview_id", s.ID),
		zap.String("method", string(method)),
		zap.String("reason", reason),
	)

	reported := &Error{
		Code:       CodeRenderFailure,
		Status:     http.StatusBadGateway,
		Title:      "Render failed",
		Message:    "The preview did not render in the browser.",
		Suggestion: SuggestScreenshot,
	}
	if method == MethodScreenshot {
		reported.Suggestion = ""
	}
	return o.fallback(ctx, s, reported)
}

// fallback moves to TryingScreenshot at most once per session.
func (o *Orchestrator) fallback(ctx context.Context, s *Session, cause *Error) error {
	if !s.claimFallback() {
		ferr := failed(cause)
		s.fail(ferr)
		o.logger.Warn("Fallback already used, preview failed",
			zap.String("preview_id", s.ID),
			zap.String("url", s.Target.URL),
		)
		return ferr
	}

	o.logger.Info("Falling back to screenshot",
		zap.String("preview_id", s.ID),
		zap.String("url", s.Target.URL),
		zap.String("cause", string(cause.Code)),
	)
	return o.tryScreenshot(ctx, s)
}

func (o *Orchestrator) tryProxy(ctx context.Context, s *Session) *Error {
	s.transition(StateTryingProxy)

	_, err := o.attempt(ctx, s, MethodProxy, func(ctx context.Context) (*Output, error) {
		return o.proxy.Document(ctx, s.Target)
	})
	if err != nil {
		return FromProxy(err)
	}

	s.ready(MethodProxy)
	return nil
}

func (o *Orchestrator) tryScreenshot(ctx context.Context, s *Session) error {
	s.transition(StateTryingScreenshot)

	_, err := o.attempt(ctx, s, MethodScreenshot, func(ctx context.Context) (*Output, error) {
		return o.capture.Image(ctx, s.Target)
	})
	if err != nil {
		serr := FromScreenshot(err)
		if !serr.Terminal() {
			serr = failed(serr)
		}
		s.fail(serr)
		return serr
	}

	s.ready(MethodScreenshot)
	return nil
}

// attempt runs one strategy and records it on the session, in a span and
// in metrics.
func (o *Orchestrator) attempt(ctx context.Context, s *Session, m Method, run func(context.Context) (*Output, error)) (*Output, error) {
	var span *tracing.Span
	if o.tracer != nil {
		span, ctx = o.tracer.StartSpan(ctx, "preview."+string(m))
		span.SetTag("preview_id", s.ID)
		span.SetTag("url", s.Target.URL)
		span.SetTag("client_id", s.Target.ClientID)
		span.SetTag("strategy", string(m))
	}

	timer := monitoring.NewTimer(o.metrics, string(m))
	start := time.Now()
	out, err := run(ctx)

	a := Attempt{
		ID:       id.NewAttemptID(),
		Strategy: m,
		Started:  start,
	}

	outcome := "success"
	switch {
	case err != nil:
		a.Err = classify(m, err)
		outcome = "error"
		if a.Err.Code == CodeValidationRejected {
			outcome = "rejected"
		}
	case out.CacheHit:
		a.CacheHit = true
		outcome = "hit"
	}
	elapsed := timer.Stop(outcome)
	a.Duration = elapsed
	s.record(a)

	if span != nil {
		span.SetTag("outcome", outcome)
		span.Finish()
		if err != nil {
			span.SetError(err)
			span.SetStatus(a.Err.Status)
		} else {
			span.SetStatus(http.StatusOK)
		}
		o.tracer.Submit(span)
	}

	fields := []zap.Field{
		zap.String("preview_id", s.ID),
		zap.String("strategy", string(m)),
		zap.String("url", s.Target.URL),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		o.logger.Warn("Rendering attempt failed", append(fields, zap.Error(err))...)
	} else {
		o.logger.Info("Rendering attempt succeeded", fields...)
	}

	return out, err
}

func classify(m Method, err error) *Error {
	if m == MethodScreenshot {
		return FromScreenshot(err)
	}
	return FromProxy(err)
}
