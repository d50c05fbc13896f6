package screenshot

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/monitoring"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls capture size, quality and timing.
type Config struct {
	Width      int
	Height     int
	Quality    int
	Timeout    time.Duration
	Settle     time.Duration
	ChromePath string
	UserAgent  string
	// CheckNavigation vets every document request the page makes,
	// redirects included. A non-nil error blocks the request and fails
	// the capture with that error.
	CheckNavigation func(rawURL string) error
}

// DefaultConfig returns a 1920x1080 desktop capture at quality 85.
func DefaultConfig() Config {
	return Config{
		Width:     1920,
		Height:    1080,
		Quality:   85,
		Timeout:   30 * time.Second,
		Settle:    time.Second,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// LoaderFunc returns the JavaScript evaluated in the page to add the chat
// widget for clientID.
type LoaderFunc func(clientID string) (string, error)

// Chrome renders pages in a lazily started headless browser.
type Chrome struct {
	cfg     Config
	loader  LoaderFunc
	logger  *zap.Logger
	metrics *monitoring.Metrics

	// launch starts a browser and returns its context and a stop func
	launch func() (context.Context, func(), error)

	mu          sync.Mutex
	browserCtx  context.Context
	stopBrowser func()
	closed      bool

	inflight  sync.WaitGroup
	closeOnce sync.Once
}

// New creates a renderer. No browser is launched until the first Render.
func New(cfg Config, loader LoaderFunc, logger *zap.Logger, metrics *monitoring.Metrics) *Chrome {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Quality <= 0 {
		cfg.Quality = def.Quality
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Chrome{
		cfg:     cfg,
		loader:  loader,
		logger:  logger,
		metrics: metrics,
	}
	c.launch = c.start
	return c
}

// Config returns the effective configuration.
func (c *Chrome) Config() Config {
	return c.cfg
}

// Started reports whether the browser process is running.
func (c *Chrome) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browserCtx != nil && c.browserCtx.Err() == nil && !c.closed
}

// acquire returns the shared browser context, starting the browser on
// first use and again after it has exited. A successful acquire must be
// paired with inflight.Done.
func (c *Chrome) acquire() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	// chromedp cancels the browser context when the connection to Chrome drops
	if c.browserCtx != nil && c.browserCtx.Err() != nil {
		c.logger.Warn("Headless browser exited, restarting", zap.Error(c.browserCtx.Err()))
		c.stopBrowser()
		c.browserCtx, c.stopBrowser = nil, nil
	}
	if c.browserCtx == nil {
		browserCtx, stop, err := c.launch()
		if err != nil {
			return nil, err
		}
		c.browserCtx, c.stopBrowser = browserCtx, stop
	}

	c.inflight.Add(1)
	return c.browserCtx, nil
}

// start launches Chrome.
func (c *Chrome) start() (context.Context, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(c.cfg.UserAgent),
		chromedp.WindowSize(c.cfg.Width, c.cfg.Height),
	)
	if c.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(c.logger.Sugar().Debugf),
	)

	// an empty Run starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		c.logger.Error("Failed to start browser", zap.Error(err))
		return nil, nil, err
	}

	c.logger.Info("Headless browser started", zap.String("chrome_path", c.cfg.ChromePath))
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}, nil
}

// Render captures target at the viewport of device with the widget for
// clientID injected. The returned bytes are a JPEG image.
func (c *Chrome) Render(ctx context.Context, target, clientID string, device Device) ([]byte, error) {
	browserCtx, err := c.acquire()
	if err != nil {
		return nil, &RenderError{Kind: KindRender, URL: target, Err: err}
	}
	defer c.inflight.Done()

	start := time.Now()
	viewport := c.cfg.Viewport(device)

	// every capture gets a fresh browser context, disposed with the tab
	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	runCtx, cancel := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("Navigating",
		zap.String("url", target),
		zap.String("device", string(device)),
		zap.Int("width", viewport.Width),
		zap.Int("height", viewport.Height),
	)

	err = chromedp.Run(runCtx,
		emulation.SetDeviceMetricsOverride(int64(viewport.Width), int64(viewport.Height), 1, device == Mobile),
		navigateAndWaitIdle(target, c.cfg.CheckNavigation),
	)
	if err != nil {
		return nil, c.fail(target, start, err)
	}

	c.inject(runCtx, target, clientID)

	var raw []byte
	err = chromedp.Run(runCtx,
		chromedp.Sleep(c.cfg.Settle),
		chromedp.FullScreenshot(&raw, c.cfg.Quality),
	)
	if err != nil {
		return nil, c.fail(target, start, err)
	}

	img, err := Recompress(raw, c.cfg.Quality)
	if err != nil {
		return nil, c.fail(target, start, err)
	}

	elapsed := time.Since(start)
	c.metrics.ObserveScreenshot(elapsed)
	c.logger.Info("Screenshot taken",
		zap.String("url", target),
		zap.Int("bytes", len(img)),
		zap.Duration("duration", elapsed),
	)
	return img, nil
}

func (c *Chrome) fail(target string, start time.Time, err error) error {
	rerr := classify(target, err)
	c.logger.Error("Screenshot failed",
		zap.String("url", target),
		zap.String("kind", string(rerr.Kind)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return rerr
}

// inject evaluates the widget loader. Failures are logged and ignored.
func (c *Chrome) inject(ctx context.Context, target, clientID string) {
	if c.loader == nil {
		return
	}
	script, err := c.loader(clientID)
	if err != nil {
		c.logger.Warn("Failed to build widget loader", zap.String("url", target), zap.Error(err))
		return
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		c.logger.Warn("Failed to inject widget", zap.String("url", target), zap.Error(err))
		return
	}
	c.logger.Debug("Widget injected into page", zap.String("url", target))
}

// navigateAndWaitIdle navigates the main frame and blocks until it
// reports networkIdle for the new document. With check set, document
// requests are paused and only continued once check accepts their URL.
func navigateAndWaitIdle(target string, check func(string) error) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := page.Enable().Do(ctx); err != nil {
			return err
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		if check != nil {
			patterns := []*fetch.RequestPattern{{URLPattern: "*", ResourceType: network.ResourceTypeDocument}}
			if err := fetch.Enable().WithPatterns(patterns).Do(ctx); err != nil {
				return err
			}
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		mainFrame := tree.Frame.ID

		idle := make(chan struct{})
		blocked := make(chan error, 1)
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// callbacks run on one goroutine, so plain locals are safe here
		started, done := false, false
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			switch e := ev.(type) {
			case *fetch.EventRequestPaused:
				go resolvePaused(listenCtx, e, check, e.FrameID == mainFrame, blocked)
			case *page.EventLifecycleEvent:
				if e.FrameID != mainFrame || done {
					return
				}
				switch e.Name {
				case "init":
					started = true
				case "networkIdle":
					if started {
						done = true
						close(idle)
					}
				}
			}
		})

		if err := chromedp.Navigate(target).Do(ctx); err != nil {
			select {
			case rerr := <-blocked:
				return rerr
			default:
				return err
			}
		}

		select {
		case <-idle:
			return nil
		case err := <-blocked:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// resolvePaused continues a paused document request or fails it when
// check rejects its URL. A rejected main-frame request is reported on
// blocked before it is failed; rejected subframes are just left empty.
func resolvePaused(ctx context.Context, ev *fetch.EventRequestPaused, check func(string) error, main bool, blocked chan<- error) {
	cmdCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exec := cdp.WithExecutor(cmdCtx, chromedp.FromContext(cmdCtx).Target)

	if err := vetNavigation(check, ev.Request.URL); err != nil {
		if main {
			select {
			case blocked <- err:
			default:
			}
		}
		_ = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(exec)
		return
	}
	_ = fetch.ContinueRequest(ev.RequestID).Do(exec)
}

// vetNavigation applies check to a document URL. Rejections come back as
// render errors that still unwrap to check's error.
func vetNavigation(check func(string) error, rawURL string) error {
	if check == nil {
		return nil
	}
	if err := check(rawURL); err != nil {
		return &RenderError{Kind: KindRender, URL: rawURL, Err: err}
	}
	return nil
}

// Close waits up to grace for in-flight captures, then stops the browser.
// Later calls are no-ops.
func (c *Chrome) Close(grace time.Duration) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		stop := c.stopBrowser
		c.mu.Unlock()

		if stop == nil {
			return
		}

		done := make(chan struct{})
		go func() {
			c.inflight.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(grace):
			c.logger.Warn("Grace period elapsed with captures in flight", zap.Duration("grace", grace))
		}

		stop()
		c.logger.Info("Browser closed")
	})
}
