package preview

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/browser"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "Proxy": ModeProxy, "screenshot": ModeScreenshot} {
		got, ok := ParseMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseMode("iframe")
	assert.False(t, ok)
}

func TestServiceCreate(t *testing.T) {
	h := newHarness(t)

	sess, err := h.service.Create(ctx, CreateRequest{URL: "https://example.com/page", ClientID: "client-1"})
	require.NoError(t, err)

	st := sess.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, ModeAuto, st.Mode)
	assert.Equal(t, "desktop", st.Device)
	assert.Equal(t, 2, EstimatedSeconds(st))

	got, err := h.service.Status(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestServiceCreateRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Create(ctx, CreateRequest{URL: "http://127.0.0.1:8080/", ClientID: "c"})

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeValidationRejected, perr.Code)
	assert.Zero(t, h.sessions.Len())
}

func TestServiceCreateKeepsFailedSession(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &browser.FetchError{Kind: browser.KindTimeout}
	h.renderer.err = &screenshot.RenderError{Kind: screenshot.KindTimeout}

	sess, err := h.service.Create(ctx, CreateRequest{URL: "https://slow.example", ClientID: "c"})
	require.NoError(t, err)

	st := sess.Status()
	assert.Equal(t, StateFailed, st.State)
	require.NotNil(t, st.Err)
	assert.Equal(t, TerminalMessage, st.Err.Message)
	assert.Equal(t, 1, h.sessions.Len())
}

func TestServiceFallback(t *testing.T) {
	h := newHarness(t)
	sess, err := h.service.Create(ctx, CreateRequest{URL: "https://example.com/page", ClientID: "c"})
	require.NoError(t, err)

	st, err := h.service.Fallback(ctx, sess.ID, "iframe error")
	require.NoError(t, err)
	assert.Equal(t, MethodScreenshot, st.Method)

	st, err = h.service.Fallback(ctx, sess.ID, "iframe error")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, st.State)

	_, err = h.service.Fallback(ctx, "missing", "")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeNotFound, perr.Code)
}

func TestServiceRenderURL(t *testing.T) {
	h := newHarness(t)
	sess, err := h.service.Create(ctx, CreateRequest{URL: "https://example.com/a?b=c&d=e", ClientID: "client 1", Device: screenshot.Mobile})
	require.NoError(t, err)

	proxyURL, err := h.service.RenderURL(sess.ID, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(proxyURL, "http://gateway.test/api/proxy?"))

	u, err := url.Parse(proxyURL)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a?b=c&d=e", u.Query().Get("url"))
	assert.Equal(t, "client 1", u.Query().Get("client_id"))

	shotURL, err := h.service.RenderURL(sess.ID, MethodScreenshot)
	require.NoError(t, err)
	u, err = url.Parse(shotURL)
	require.NoError(t, err)
	assert.Equal(t, "/api/screenshot", u.Path)
	assert.Equal(t, "mobile", u.Query().Get("device"))
}

func TestServiceShare(t *testing.T) {
	h := newHarness(t)
	sess, err := h.service.Create(ctx, CreateRequest{URL: "https://example.com/page", ClientID: "c"})
	require.NoError(t, err)

	shareURL, expires, err := h.service.Share(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(shareURL, "http://gateway.test/share/"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	token := strings.TrimPrefix(shareURL, "http://gateway.test/share/")
	target, err := h.service.ResolveShare(ctx, token)
	require.NoError(t, err)
	assert.Contains(t, target, "/api/proxy?")

	_, err = h.service.ResolveShare(ctx, "not-a-token")
	assert.Error(t, err)

	// deleting the session breaks the link
	require.NoError(t, h.service.Delete(sess.ID))
	_, err = h.service.ResolveShare(ctx, token)
	assert.Error(t, err)
	assert.Error(t, h.service.Delete(sess.ID))

	_, _, err = h.service.Share(ctx, sess.ID)
	assert.Error(t, err)
}

func TestManagerExpiry(t *testing.T) {
	m := NewManager(20*time.Millisecond, 0, nil, nil)
	defer m.Close()

	s := m.Create(Target{URL: "https://example.com"}, ModeAuto)
	_, ok := m.Get(s.ID)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Zero(t, m.Len())

	m.Create(Target{}, ModeAuto)
	m.Create(Target{}, ModeAuto)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, m.Sweep())
}

func TestManagerJanitor(t *testing.T) {
	m := NewManager(10*time.Millisecond, 5*time.Millisecond, nil, nil)
	defer m.Close()

	m.Create(Target{}, ModeAuto)
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}
