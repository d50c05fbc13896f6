package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/SitePreview/backend/internal/api/middleware"
	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/preview"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
	"github.com/GriffinCanCode/SitePreview/backend/internal/shared/utils"
)

// PreviewSettings selects device and rendering mode.
type PreviewSettings struct {
	Device       string `json:"device"`
	RenderMethod string `json:"render_method"`
}

// CreatePreviewRequest is the body of POST /api/preview.
type CreatePreviewRequest struct {
	WebsiteURL      string          `json:"website_url"`
	ClientID        string          `json:"client_id"`
	PreviewSettings PreviewSettings `json:"preview_settings"`
	BypassCache     bool            `json:"bypass_cache"`
}

// PreviewResponse describes a freshly created session.
type PreviewResponse struct {
	PreviewID            string `json:"preview_id"`
	Status               string `json:"status"`
	State                string `json:"state"`
	Method               string `json:"method,omitempty"`
	PreviewURL           string `json:"preview_url"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
	ErrorMessage         string `json:"error_message,omitempty"`
}

// PreviewStatusResponse is the body of GET /api/preview/:id/status.
type PreviewStatusResponse struct {
	PreviewID         string    `json:"preview_id"`
	Status            string    `json:"status"`
	State             string    `json:"state"`
	Method            string    `json:"method,omitempty"`
	Mode              string    `json:"mode"`
	FallbackAttempted bool      `json:"fallback_attempted"`
	Attempts          int       `json:"attempts"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	Suggestion        string    `json:"suggestion,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// FallbackRequest is the optional body of POST /api/preview/:id/fallback.
type FallbackRequest struct {
	Reason string `json:"reason"`
}

// publicStatus collapses the state machine into processing|ready|failed.
func publicStatus(s preview.State) string {
	switch s {
	case preview.StateReady:
		return "ready"
	case preview.StateFailed:
		return "failed"
	default:
		return "processing"
	}
}

func statusResponse(st preview.Status) PreviewStatusResponse {
	resp := PreviewStatusResponse{
		PreviewID:         st.ID,
		Status:            publicStatus(st.State),
		State:             string(st.State),
		Method:            string(st.Method),
		Mode:              string(st.Mode),
		FallbackAttempted: st.FallbackAttempted,
		Attempts:          st.Attempts,
		CreatedAt:         st.CreatedAt,
		ExpiresAt:         st.ExpiresAt,
	}
	if st.Err != nil {
		resp.ErrorMessage = st.Err.Message
		resp.Suggestion = st.Err.Suggestion
	}
	return resp
}

// previewID validates the :id path parameter.
func previewID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if err := utils.ValidateID(id, "preview_id"); err != nil {
		return "", preview.Invalid(err.Error())
	}
	return id, nil
}

// CreatePreview starts a preview session and runs it.
func (h *Handlers) CreatePreview(c *gin.Context) {
	var req CreatePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			return
		}
		h.fail(c, preview.Invalid("Request body must be JSON"))
		return
	}
	if err := utils.ValidateString(req.WebsiteURL, "website_url", 1, utils.MaxURLLength, true); err != nil {
		h.fail(c, preview.Invalid(err.Error()))
		return
	}
	if err := utils.ValidateClientID(req.ClientID); err != nil {
		h.fail(c, preview.Invalid(err.Error()))
		return
	}
	mode, ok := preview.ParseMode(req.PreviewSettings.RenderMethod)
	if !ok {
		h.fail(c, preview.Invalid("render_method must be one of auto, proxy, screenshot"))
		return
	}

	sess, err := h.previews.Create(c.Request.Context(), preview.CreateRequest{
		URL:      req.WebsiteURL,
		ClientID: req.ClientID,
		Device:   screenshot.ParseDevice(req.PreviewSettings.Device),
		Mode:     mode,
		Bypass:   req.BypassCache,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	st := sess.Status()
	previewURL, err := h.previews.RenderURL(sess.ID, st.Method)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := PreviewResponse{
		PreviewID:            sess.ID,
		Status:               publicStatus(st.State),
		State:                string(st.State),
		Method:               string(st.Method),
		PreviewURL:           previewURL,
		EstimatedTimeSeconds: preview.EstimatedSeconds(st),
	}
	if st.Err != nil {
		resp.ErrorMessage = st.Err.Message
	}
	c.JSON(http.StatusCreated, resp)
}

// PreviewStatus reports where a session is in its lifecycle.
func (h *Handlers) PreviewStatus(c *gin.Context) {
	id, err := previewID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	st, err := h.previews.Status(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse(st))
}

// PreviewFallback records that the client could not display the current
// rendering and moves the session to its fallback.
func (h *Handlers) PreviewFallback(c *gin.Context) {
	id, err := previewID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var req FallbackRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, preview.Invalid("Request body must be JSON"))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "client-reported"
	}

	st, err := h.previews.Fallback(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := statusResponse(st)
	if st.State == preview.StateReady {
		if u, err := h.previews.RenderURL(id, st.Method); err == nil {
			c.JSON(http.StatusOK, gin.H{"status": resp, "preview_url": u})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": resp})
}

// RenderPreview returns the URL that renders a session with method.
func (h *Handlers) RenderPreview(c *gin.Context) {
	id, err := previewID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var method preview.Method
	switch m := c.Query("method"); m {
	case "", string(preview.MethodProxy), string(preview.MethodScreenshot):
		method = preview.Method(m)
	default:
		h.fail(c, preview.Invalid("method must be proxy or screenshot"))
		return
	}

	u, err := h.previews.RenderURL(id, method)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview_url": u})
}

// SharePreview issues a time-limited share link.
func (h *Handlers) SharePreview(c *gin.Context) {
	id, err := previewID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	shareURL, expires, err := h.previews.Share(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"share_url":  shareURL,
		"expires_at": expires.Format(time.RFC3339),
	})
}

// DeletePreview drops a session.
func (h *Handlers) DeletePreview(c *gin.Context) {
	id, err := previewID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.previews.Delete(id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Preview deleted successfully"})
}

// OpenShare redirects a share link to the preview it points at.
func (h *Handlers) OpenShare(c *gin.Context) {
	token := c.Param("token")
	if err := utils.ValidateID(token, "token"); err != nil {
		h.fail(c, preview.Invalid(err.Error()))
		return
	}
	u, err := h.previews.ResolveShare(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}
