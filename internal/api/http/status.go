package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 2 * time.Second

// Health reports readiness. Every probe runs concurrently; the gateway is
// degraded if any of them is unhealthy.
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		states  = make(map[string]string, len(h.probes))
		healthy = true
	)

	g, gctx := errgroup.WithContext(ctx)
	for name, probe := range h.probes {
		g.Go(func() error {
			state, ok := probe(gctx)
			mu.Lock()
			states[name] = state
			healthy = healthy && ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	body := gin.H{
		"service":   h.service,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
	}
	for name, state := range states {
		body[name] = state
	}
	if h.previews != nil {
		body["sessions"] = h.previews.Sessions().Len()
	}

	status := http.StatusOK
	body["status"] = "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// WidgetScript serves the embeddable chat widget.
func (h *Handlers) WidgetScript(c *gin.Context) {
	script, err := h.widget.Embeddable()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(script))
}
