package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/preview"
)

const genericMessage = "An unexpected error occurred. Please try again later."

// errorBody renders a classified failure. Internal detail is only
// attached in development; production 5xx answers never echo it.
func (h *Handlers) errorBody(e *preview.Error) gin.H {
	body := gin.H{
		"error":   e.Title,
		"message": e.Message,
	}
	if e.Message == "" && e.Status >= http.StatusInternalServerError {
		body["message"] = genericMessage
	}
	if e.Suggestion != "" {
		body["suggestion"] = e.Suggestion
	}
	if e.UpstreamStatus != 0 {
		body["statusCode"] = e.UpstreamStatus
	}
	if e.Reason != "" {
		body["reason"] = string(e.Reason)
	}
	if h.dev && e.Err != nil {
		body["details"] = e.Err.Error()
	}
	return body
}

// fail writes err as JSON. Anything that is not a preview.Error is an
// internal failure.
func (h *Handlers) fail(c *gin.Context, err error) {
	var e *preview.Error
	if !errors.As(err, &e) {
		e = &preview.Error{
			Status: http.StatusInternalServerError,
			Title:  "Internal server error",
			Err:    err,
		}
	}

	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	fields := []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("code", string(e.Code)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Warn("Request rejected", fields...)
	}

	c.AbortWithStatusJSON(status, h.errorBody(e))
}
