package preview

import (
	"context"
	"fmt"
	"net/url"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/browser"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/cache"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/deframe"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/guard"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Validator decides whether a URL may be fetched.
type Validator interface {
	Validate(raw string) guard.Verdict
}

// Renderer captures a page as an image.
type Renderer interface {
	Render(ctx context.Context, target, clientID string, device screenshot.Device) ([]byte, error)
}

// WidgetInjector adds the chat widget for pageURL to a document.
type WidgetInjector interface {
	Inject(doc *goquery.Document, clientID, pageURL string) (bool, error)
}

// Target identifies what to preview.
type Target struct {
	URL      string
	ClientID string
	Device   screenshot.Device
	Bypass   bool
}

// Output is the product of one strategy run.
type Output struct {
	Method      Method
	Body        []byte
	ContentType string
	CacheHit    bool
}

// Proxy produces rewritten, embeddable HTML documents.
type Proxy struct {
	guard   Validator
	fetcher browser.Fetcher
	deframe *deframe.Engine
	widget  WidgetInjector
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewProxy wires the proxy strategy. A nil engine uses the default
// signature set.
func NewProxy(v Validator, f browser.Fetcher, engine *deframe.Engine, w WidgetInjector, c *cache.Cache, logger *zap.Logger) *Proxy {
	if engine == nil {
		engine = deframe.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{guard: v, fetcher: f, deframe: engine, widget: w, cache: c, logger: logger}
}

// Document returns the processed document for t, from cache when possible.
func (p *Proxy) Document(ctx context.Context, t Target) (*Output, error) {
	if err := p.guard.Validate(t.URL).Err(); err != nil {
		return nil, err
	}

	key := p.cache.DocumentKey(t.URL, t.ClientID)
	body, hit, err := p.cache.Fetch(ctx, cache.KindDocument, key, t.Bypass, func(ctx context.Context) ([]byte, error) {
		return p.build(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		Method:      MethodProxy,
		Body:        body,
		ContentType: "text/html; charset=utf-8",
		CacheHit:    hit,
	}, nil
}

func (p *Proxy) build(ctx context.Context, t Target) ([]byte, error) {
	page, err := p.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		return nil, err
	}

	doc, err := browser.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	base := page.URL
	if page.FinalURL != "" {
		if u, err := url.Parse(page.FinalURL); err == nil {
			base = u
		}
	}

	browser.Rewrite(doc, base)
	report := p.deframe.Apply(doc)
	if p.widget != nil {
		pageURL := t.URL
		if base != nil {
			pageURL = base.String()
		}
		if _, err := p.widget.Inject(doc, t.ClientID, pageURL); err != nil {
			return nil, fmt.Errorf("inject widget: %w", err)
		}
	}

	html, err := browser.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	p.logger.Debug("Document processed",
		zap.String("url", t.URL),
		zap.Int("directives_removed", report.DirectivesRemoved),
		zap.Int("scripts_neutralized", report.ScriptsNeutralized),
		zap.Strings("signatures", report.Matched),
	)
	return []byte(html), nil
}

// Capture produces screenshots.
type Capture struct {
	guard    Validator
	renderer Renderer
	cache    *cache.Cache
}

// NewCapture wires the screenshot strategy.
func NewCapture(v Validator, r Renderer, c *cache.Cache) *Capture {
	return &Capture{guard: v, renderer: r, cache: c}
}

// Image returns a JPEG capture for t, from cache when possible.
func (c *Capture) Image(ctx context.Context, t Target) (*Output, error) {
	if err := c.guard.Validate(t.URL).Err(); err != nil {
		return nil, err
	}

	device := screenshot.ParseDevice(string(t.Device))
	key := c.cache.ScreenshotKey(t.URL, t.ClientID, string(device))
	body, hit, err := c.cache.Fetch(ctx, cache.KindScreenshot, key, t.Bypass, func(ctx context.Context) ([]byte, error) {
		return c.renderer.Render(ctx, t.URL, t.ClientID, device)
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		Method:      MethodScreenshot,
		Body:        body,
		ContentType: "image/jpeg",
		CacheHit:    hit,
	}, nil
}
