package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/chat"
	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/preview"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/widget"
)

// Probe reports the state of one dependency for /health.
type Probe func(ctx context.Context) (state string, healthy bool)

// Deps are the collaborators the handlers serve.
type Deps struct {
	Proxy    preview.DocumentSource
	Capture  preview.ImageSource
	Previews *preview.Service
	Chat     *chat.Service
	Widget   *widget.Injector
	// Probes are run concurrently by /health, keyed by response field.
	Probes map[string]Probe
	// Development attaches internal error detail to responses.
	Development bool
	Service     string
	StartTime   time.Time
	Logger      *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	proxy    preview.DocumentSource
	capture  preview.ImageSource
	previews *preview.Service
	chat     *chat.Service
	widget   *widget.Injector
	probes   map[string]Probe
	dev      bool
	service  string
	started  time.Time
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Service == "" {
		d.Service = "site-preview-gateway"
	}
	if d.StartTime.IsZero() {
		d.StartTime = time.Now()
	}
	return &Handlers{
		proxy:    d.Proxy,
		capture:  d.Capture,
		previews: d.Previews,
		chat:     d.Chat,
		widget:   d.Widget,
		probes:   d.Probes,
		dev:      d.Development,
		service:  d.Service,
		started:  d.StartTime,
		logger:   d.Logger.Named("api"),
	}
}

// Register mounts the routes. limit wraps the /api group only.
func (h *Handlers) Register(router *gin.Engine, limit ...gin.HandlerFunc) {
	router.GET("/health", h.Health)
	router.GET("/widget.js", h.WidgetScript)
	router.GET("/share/:token", h.OpenShare)

	api := router.Group("/api", limit...)
	api.GET("/proxy", h.Proxy)
	api.GET("/screenshot", h.Screenshot)
	api.POST("/chat", h.Chat)

	previews := api.Group("/preview")
	previews.POST("", h.CreatePreview)
	previews.GET("/:id/status", h.PreviewStatus)
	previews.POST("/:id/fallback", h.PreviewFallback)
	previews.GET("/:id/render", h.RenderPreview)
	previews.GET("/:id/share", h.SharePreview)
	previews.DELETE("/:id", h.DeletePreview)
}
