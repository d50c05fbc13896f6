package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/SitePreview/backend/internal/api/middleware"
	"github.com/GriffinCanCode/SitePreview/backend/internal/domain/chat"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/guard"
	"github.com/GriffinCanCode/SitePreview/backend/internal/shared/utils"
)

const missingChatFields = "Missing required fields: client_id, message, url"

// Chat answers a widget message about the page it is embedded in.
func (h *Handlers) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": missingChatFields})
		return
	}
	if req.ClientID == "" || req.Message == "" || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingChatFields})
		return
	}
	if err := validateChat(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ans, err := h.chat.Answer(c.Request.Context(), req)
	if err != nil {
		var r *guard.Rejection
		if errors.As(err, &r) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid URL",
				"message": r.Message,
				"reason":  string(r.Reason),
			})
			return
		}

		h.logger.Error("Chat request failed",
			zap.String("url", req.URL),
			zap.String("client_id", req.ClientID),
			zap.Error(err),
		)
		body := gin.H{
			"error":    "Failed to process chat message",
			"response": chat.FailureMessage,
		}
		if h.dev {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response": ans.Response,
		"sources":  ans.Sources,
	})
}

func validateChat(req chat.Request) error {
	if err := utils.ValidateClientID(req.ClientID); err != nil {
		return err
	}
	if err := utils.ValidateMessage(req.Message); err != nil {
		return err
	}
	if err := utils.ValidateTargetURL(req.URL); err != nil {
		return err
	}
	if len(req.History) > utils.MaxHistoryEntries {
		return fmt.Errorf("history must not exceed %d entries", utils.MaxHistoryEntries)
	}
	return nil
}
