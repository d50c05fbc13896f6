package preview

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/browser"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/deframe"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/guard"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ctx = context.Background()

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func TestProxyDocumentPipeline(t *testing.T) {
	h := newHarness(t)

	out, err := h.proxy.Document(ctx, Target{URL: "https://example.com/page", ClientID: "client-1"})
	require.NoError(t, err)

	html := string(out.Body)
	assert.Equal(t, MethodProxy, out.Method)
	assert.False(t, out.CacheHit)
	assert.Contains(t, html, `src="https://example.com/a.png"`)
	assert.Contains(t, html, deframe.Placeholder)
	assert.NotContains(t, html, "top.location")
	assert.NotContains(t, html, "X-Frame-Options")
	assert.Contains(t, html, `data-chat-widget`)
	assert.Contains(t, html, "client-1")
	// the widget asks about the target page, not the gateway URL it is served from
	assert.Contains(t, html, `var PAGE_URL = "https://example.com/page" || window.location.href;`)
}

func TestProxyCachesByIdentity(t *testing.T) {
	h := newHarness(t)
	target := Target{URL: "https://example.com/page", ClientID: "client-1"}

	_, err := h.proxy.Document(ctx, target)
	require.NoError(t, err)
	out, err := h.proxy.Document(ctx, target)
	require.NoError(t, err)

	assert.True(t, out.CacheHit)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())

	// another client is another identity
	_, err = h.proxy.Document(ctx, Target{URL: target.URL, ClientID: "client-2"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.fetcher.calls.Load())

	// bypass refetches and overwrites
	target.Bypass = true
	out, err = h.proxy.Document(ctx, target)
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, int32(3), h.fetcher.calls.Load())
}

func TestGuardRunsBeforeFetch(t *testing.T) {
	h := newHarness(t)

	for _, raw := range []string{"ftp://example.com/", "javascript:alert(1)", "http://10.1.2.3/", "https://www.paypal.com/"} {
		_, err := h.proxy.Document(ctx, Target{URL: raw, ClientID: "c"})
		assert.ErrorIs(t, err, guard.ErrRejected, raw)

		_, err = h.capture.Image(ctx, Target{URL: raw, ClientID: "c"})
		assert.ErrorIs(t, err, guard.ErrRejected, raw)
	}

	assert.Zero(t, h.fetcher.calls.Load())
	assert.Zero(t, h.renderer.Calls())
}

func TestCaptureCachesPerDevice(t *testing.T) {
	h := newHarness(t)
	target := Target{URL: "https://example.com", ClientID: "c", Device: screenshot.Mobile}

	out, err := h.capture.Image(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.ContentType)

	out, err = h.capture.Image(ctx, target)
	require.NoError(t, err)
	assert.True(t, out.CacheHit)

	target.Device = screenshot.Tablet
	_, err = h.capture.Image(ctx, target)
	require.NoError(t, err)

	assert.Equal(t, 2, h.renderer.Calls())
	assert.Equal(t, []screenshot.Device{screenshot.Mobile, screenshot.Tablet}, h.renderer.devices)
}

func TestStartProxySuccess(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeAuto)

	require.NoError(t, h.orch.Start(ctx, s))

	st := s.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, MethodProxy, st.Method)
	assert.False(t, st.FallbackAttempted)
	assert.Zero(t, h.renderer.Calls())

	// a started session is not run again
	require.NoError(t, h.orch.Start(ctx, s))
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
}

func TestStartTwiceHitsCache(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.Start(ctx, h.session(ModeAuto)))
	second := h.session(ModeAuto)
	require.NoError(t, h.orch.Start(ctx, second))

	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	attempts := second.Attempts()
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].CacheHit)
}

func TestStartFallsBackOnProxyFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &browser.FetchError{Kind: browser.KindTimeout, URL: "https://example.com/page"}
	s := h.session(ModeAuto)

	require.NoError(t, h.orch.Start(ctx, s))

	st := s.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, MethodScreenshot, st.Method)
	assert.True(t, st.FallbackAttempted)
	assert.Equal(t, 2, st.Attempts)

	attempts := s.Attempts()
	assert.Equal(t, MethodProxy, attempts[0].Strategy)
	assert.Equal(t, CodeUpstreamTimeout, attempts[0].Err.Code)
	assert.Equal(t, MethodScreenshot, attempts[1].Strategy)
	assert.Nil(t, attempts[1].Err)
}

func TestStartFailsAfterBothStrategies(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &browser.FetchError{Kind: browser.KindRefused}
	h.renderer.err = &screenshot.RenderError{Kind: screenshot.KindNetwork, Err: errors.New("net::ERR_CONNECTION_REFUSED")}
	s := h.session(ModeAuto)

	err := h.orch.Start(ctx, s)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeFailed, perr.Code)
	assert.Equal(t, TerminalMessage, perr.Message)
	assert.Equal(t, http.StatusBadGateway, perr.Status)

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, 1, h.renderer.Calls())

	// nothing further is attempted, including on a client report
	err = h.orch.ReportFailure(ctx, s, "iframe error")
	require.Error(t, err)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
	assert.Equal(t, 1, h.renderer.Calls())
	assert.Equal(t, StateFailed, s.State())
}

func TestRejectionIsTerminal(t *testing.T) {
	h := newHarness(t)
	s := h.sessions.Create(Target{URL: "http://192.168.0.5/admin", ClientID: "c"}, ModeAuto)

	err := h.orch.Start(ctx, s)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeValidationRejected, perr.Code)
	assert.Equal(t, guard.ReasonPrivateIP, perr.Reason)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, StateFailed, s.State())
	assert.Zero(t, h.renderer.Calls())
}

func TestProxyModeDoesNotFallBack(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &browser.FetchError{Kind: browser.KindHTTPStatus, Status: 503, StatusText: "Service Unavailable"}
	s := h.session(ModeProxy)

	err := h.orch.Start(ctx, s)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeUpstreamHTTP, perr.Code)
	assert.Equal(t, 503, perr.Status)
	assert.Zero(t, h.renderer.Calls())
}

func TestScreenshotModeSkipsProxy(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeScreenshot)

	require.NoError(t, h.orch.Start(ctx, s))
	assert.Equal(t, MethodScreenshot, s.Status().Method)
	assert.Zero(t, h.fetcher.calls.Load())

	// the screenshot was the only strategy, so a report fails the session
	err := h.orch.ReportFailure(ctx, s, "image error")
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 1, h.renderer.Calls())
}

func TestReportFailureFallsBackOnce(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeAuto)
	require.NoError(t, h.orch.Start(ctx, s))

	require.NoError(t, h.orch.ReportFailure(ctx, s, "iframe error"))
	st := s.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, MethodScreenshot, st.Method)
	assert.Equal(t, 1, h.renderer.Calls())

	err := h.orch.ReportFailure(ctx, s, "iframe error")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeFailed, perr.Code)
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 1, h.renderer.Calls())
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
}

func TestReportFailureBeforeStart(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.orch.ReportFailure(ctx, h.session(ModeAuto), ""), ErrNotStarted)
}

func TestAttemptsAreMeasured(t *testing.T) {
	h := newHarness(t)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("test", zap.NewNop())
	defer tracer.Close()

	h.fetcher.err = &browser.FetchError{Kind: browser.KindNotFound}
	orch := NewOrchestrator(h.proxy, h.capture, tracer, metrics, nil)
	require.NoError(t, orch.Start(ctx, h.session(ModeAuto)))

	assert.Equal(t, 1.0, counterValue(metrics.PreviewAttempts.WithLabelValues("proxy", "error")))
	assert.Equal(t, 1.0, counterValue(metrics.PreviewAttempts.WithLabelValues("screenshot", "success")))
}

func TestFromProxyTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		code       Code
		status     int
		suggestion string
	}{
		{"timeout", &browser.FetchError{Kind: browser.KindTimeout}, CodeUpstreamTimeout, 504, SuggestScreenshot},
		{"dns", &browser.FetchError{Kind: browser.KindNotFound}, CodeUpstreamNotFound, 404, ""},
		{"refused", &browser.FetchError{Kind: browser.KindRefused}, CodeUpstreamRefused, 502, ""},
		{"http", &browser.FetchError{Kind: browser.KindHTTPStatus, Status: 403, StatusText: "Forbidden"}, CodeUpstreamHTTP, 403, ""},
		{"other", errors.New("boom"), CodeRenderFailure, 500, SuggestScreenshot},
		{"rejected", &guard.Rejection{Reason: guard.ReasonBadScheme, Message: "bad"}, CodeValidationRejected, 400, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromProxy(tt.err)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.suggestion, e.Suggestion)
			assert.NotEmpty(t, e.Message)
		})
	}

	e := FromProxy(&browser.FetchError{Kind: browser.KindHTTPStatus, Status: 404, StatusText: "Not Found"})
	assert.True(t, strings.HasSuffix(e.Message, "Not Found"))
	assert.Equal(t, 404, e.UpstreamStatus)
}

func TestFromScreenshotTaxonomy(t *testing.T) {
	assert.Equal(t, 504, FromScreenshot(&screenshot.RenderError{Kind: screenshot.KindTimeout}).Status)
	assert.Equal(t, 502, FromScreenshot(&screenshot.RenderError{Kind: screenshot.KindNetwork}).Status)
	assert.Equal(t, 500, FromScreenshot(&screenshot.RenderError{Kind: screenshot.KindRender}).Status)
	assert.Equal(t, SuggestProxy, FromScreenshot(errors.New("x")).Suggestion)
}

func TestBlockedBrowserRedirectIsTerminal(t *testing.T) {
	h := newHarness(t)
	h.renderer.err = &screenshot.RenderError{
		Kind: screenshot.KindRender,
		URL:  "http://10.0.0.1/",
		Err:  &guard.Rejection{Reason: guard.ReasonPrivateIP, Message: "private address", URL: "http://10.0.0.1/"},
	}
	s := h.session(ModeScreenshot)

	err := h.orch.Start(ctx, s)
	require.Error(t, err)

	st := s.Status()
	assert.Equal(t, StateFailed, st.State)
	require.NotNil(t, st.Err)
	assert.Equal(t, CodeValidationRejected, st.Err.Code)
	assert.Equal(t, http.StatusBadRequest, st.Err.Status)
}
