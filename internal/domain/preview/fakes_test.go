package preview

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/browser"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/cache"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/guard"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/widget"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><title>Example</title>
<meta http-equiv="X-Frame-Options" content="DENY">
</head><body>
<img src="/a.png">
<script>if (top != self) top.location = parent.location;</script>
</body></html>`

type fakeFetcher struct {
	calls atomic.Int32
	body  string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, target string) (*browser.Page, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	return &browser.Page{
		URL:         u,
		FinalURL:    target,
		Status:      200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(f.body),
	}, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	calls   int
	devices []screenshot.Device
	err     error
}

func (r *fakeRenderer) Render(_ context.Context, _, _ string, device screenshot.Device) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.devices = append(r.devices, device)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("\xff\xd8jpeg"), nil
}

func (r *fakeRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type harness struct {
	fetcher  *fakeFetcher
	renderer *fakeRenderer
	cache    *cache.Cache
	proxy    *Proxy
	capture  *Capture
	orch     *Orchestrator
	sessions *Manager
	service  *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := cache.NewMemoryStore(time.Minute)
	c, err := cache.New(store, cache.DefaultOptions(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	h := &harness{
		fetcher:  &fakeFetcher{body: samplePage},
		renderer: &fakeRenderer{},
		cache:    c,
	}

	g := guard.New(nil, nil)
	h.proxy = NewProxy(g, h.fetcher, nil, widget.New("http://gateway.test"), c, nil)
	h.capture = NewCapture(g, h.renderer, c)
	h.orch = NewOrchestrator(h.proxy, h.capture, nil, nil, nil)
	h.sessions = NewManager(time.Hour, 0, nil, nil)
	h.service = NewService(h.orch, h.sessions, NewShares(c, time.Hour), "http://gateway.test/", nil)
	return h
}

func (h *harness) session(mode Mode) *Session {
	return h.sessions.Create(Target{URL: "https://example.com/page", ClientID: "client-1", Device: screenshot.Desktop}, mode)
}
