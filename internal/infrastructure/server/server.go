package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/GriffinCanCode/SitePreview/backend/internal/api/http"
	"github.com/GriffinCanCode/SitePreview/backend/internal/api/middleware"
	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/chat"
	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/preview"
	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/browser"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/cache"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/deframe"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/guard"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/widget"
)

// sessionSweepInterval is how often expired preview sessions are dropped.
const sessionSweepInterval = time.Minute

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	cache    *cache.Cache
	chrome   *screenshot.Chrome
	sessions *preview.Manager
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing site preview gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("public_url", cfg.Server.PublicURL),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	// Metrics first, every component reports into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("gateway", logger.Logger)

	store, err := cache.Open(cache.StoreOptions{
		Backend:       cfg.Cache.Backend,
		RedisURL:      cfg.Cache.RedisURL,
		RedisPassword: cfg.Cache.RedisPassword,
		Dir:           cfg.Cache.Dir,
		Timeout:       2 * time.Second,
		Logger:        logger.Component("cache"),
	})
	if err != nil {
		// The cache is an optimisation; run without a shared store.
		logger.Warn("Cache backend unavailable, using in-memory store",
			zap.String("backend", cfg.Cache.Backend),
			zap.Error(err),
		)
		store = cache.NewMemoryStore(time.Minute)
	}
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("Cache store unreachable, serving without cache until it recovers", zap.Error(err))
	}
	cancelPing()

	c, err := cache.New(store, cache.Options{
		DocumentTTL:   cfg.Cache.DocumentTTL,
		ContentTTL:    cfg.Cache.ContentTTL,
		ScreenshotTTL: cfg.Cache.ScreenshotTTL,
		ShareTTL:      cfg.Session.ShareTTL,
		Compress:      cfg.Cache.Compress,
		Coalesce:      cfg.Cache.Coalesce,
	}, logger.Component("cache"), metrics)
	if err != nil {
		_ = store.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	g := guard.New(cfg.Guard.BlacklistedDomains, logger.Component("guard"))
	checkRedirect := func(next *url.URL) error {
		return g.Validate(next.String()).Err()
	}

	fetcher := browser.NewClient(browser.Config{
		Timeout:       cfg.Fetch.Timeout,
		MaxRedirects:  cfg.Fetch.MaxRedirects,
		UserAgent:     cfg.Fetch.UserAgent,
		MaxBodySize:   browser.MaxBodySize,
		CheckRedirect: checkRedirect,
	}, logger.Component("fetch"))
	chatFetcher := browser.NewClient(browser.Config{
		Timeout:       cfg.Fetch.Timeout,
		MaxRedirects:  cfg.Fetch.MaxRedirects,
		UserAgent:     chat.UserAgent,
		MaxBodySize:   browser.MaxBodySize,
		CheckRedirect: checkRedirect,
	}, logger.Component("fetch"))

	injector := widget.New(cfg.Server.PublicURL)
	chrome := screenshot.New(screenshot.Config{
		Width:      cfg.Screenshot.ViewportWidth,
		Height:     cfg.Screenshot.ViewportHeight,
		Quality:    cfg.Screenshot.Quality,
		Timeout:    cfg.Screenshot.Timeout,
		Settle:     cfg.Screenshot.Settle,
		ChromePath: cfg.Screenshot.ChromePath,
		UserAgent:  cfg.Fetch.UserAgent,
		CheckNavigation: func(raw string) error {
			return g.Validate(raw).Err()
		},
	}, func(clientID string) (string, error) {
		return injector.Loader(cfg.Screenshot.WidgetCDNURL, clientID)
	}, logger.Component("screenshot"), metrics)

	proxy := preview.NewProxy(g, fetcher, deframe.New(), injector, c, logger.Component("proxy"))
	capture := preview.NewCapture(g, chrome, c)
	orch := preview.NewOrchestrator(proxy, capture, tracer, metrics, logger.Component("orchestrator"))
	sessions := preview.NewManager(cfg.Session.TTL, sessionSweepInterval, metrics, logger.Component("sessions"))
	previews := preview.NewService(orch, sessions, preview.NewShares(c, cfg.Session.ShareTTL), cfg.Server.PublicURL, logger.Component("preview"))
	chatService := chat.NewService(g, chatFetcher, c, chat.NewResponder(), logger.Component("chat"))

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowedOrigins)))
	router.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	router.NoRoute(middleware.NotFound())

	var limit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled", zap.Int("per_minute", cfg.RateLimit.RequestsPerMinute))
		limit = append(limit, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		}))
	}

	handlers := api.NewHandlers(api.Deps{
		Proxy:    proxy,
		Capture:  capture,
		Previews: previews,
		Chat:     chatService,
		Widget:   injector,
		Probes: map[string]api.Probe{
			"cache": func(ctx context.Context) (string, bool) {
				if err := c.Ping(ctx); err != nil {
					return "disconnected", false
				}
				return "connected", true
			},
			"browser": func(context.Context) (string, bool) {
				if chrome.Started() {
					return "started", true
				}
				return "idle", true
			},
		},
		Development: cfg.Server.Development(),
		StartTime:   metrics.StartTime(),
		Logger:      logger.Logger,
	})
	handlers.Register(router, limit...)
	router.GET("/metrics", metrics.Handler())

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		cache:    c,
		chrome:   chrome,
		sessions: sessions,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Router exposes the configured engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. A clean
// Shutdown is not an error.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, lets in-flight captures finish within
// the configured grace period and then releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	grace := s.config.Server.ShutdownGrace

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.http == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(gctx, grace)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.chrome.Close(grace)
		return nil
	})
	err := g.Wait()

	s.sessions.Close()
	if cerr := s.cache.Close(); cerr != nil {
		s.logger.Error("Failed to close cache", zap.Error(cerr))
		err = errors.Join(err, fmt.Errorf("close cache: %w", cerr))
	}
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()
	return err
}
