package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/preview"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/deframe"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"github.com/GriffinCanCode/SitePreview/backend/internal/shared/utils"
)

// targetFromQuery reads url, client_id, device and bypass_cache.
func targetFromQuery(c *gin.Context) (preview.Target, error) {
	t := preview.Target{
		URL:      c.Query("url"),
		ClientID: c.Query("client_id"),
		Device:   screenshot.ParseDevice(c.Query("device")),
		Bypass:   c.Query("bypass_cache") == "true",
	}
	if err := utils.ValidateTargetURL(t.URL); err != nil {
		return t, preview.Invalid(err.Error())
	}
	if err := utils.ValidateClientID(t.ClientID); err != nil {
		return t, preview.Invalid(err.Error())
	}
	return t, nil
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func elapsed(start time.Time) string {
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}

// Proxy serves the rewritten document for url.
func (h *Handlers) Proxy(c *gin.Context) {
	start := time.Now()

	t, err := targetFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	out, err := h.proxy.Document(c.Request.Context(), t)
	if err != nil {
		h.fail(c, preview.FromProxy(err))
		return
	}

	for name, value := range deframe.ResponseHeaders {
		c.Header(name, value)
	}
	c.Header("X-Cache", cacheHeader(out.CacheHit))
	c.Header("X-Response-Time", elapsed(start))

	h.logger.Info("Proxy request completed",
		zap.String("url", t.URL),
		zap.String("client_id", t.ClientID),
		zap.Bool("cache_hit", out.CacheHit),
		zap.Duration("duration", time.Since(start)),
	)
	c.Data(http.StatusOK, out.ContentType, out.Body)
}

// Screenshot serves a JPEG capture of url.
func (h *Handlers) Screenshot(c *gin.Context) {
	start := time.Now()

	t, err := targetFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	out, err := h.capture.Image(c.Request.Context(), t)
	if err != nil {
		h.fail(c, preview.FromScreenshot(err))
		return
	}

	c.Header("X-Cache", cacheHeader(out.CacheHit))
	c.Header("X-Response-Time", elapsed(start))

	h.logger.Info("Screenshot request completed",
		zap.String("url", t.URL),
		zap.String("device", string(t.Device)),
		zap.Bool("cache_hit", out.CacheHit),
		zap.Duration("duration", time.Since(start)),
	)
	c.Data(http.StatusOK, out.ContentType, out.Body)
}
