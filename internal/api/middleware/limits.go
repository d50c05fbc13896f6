package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit rejects request bodies larger than limit bytes. Declared
// lengths are checked up front; chunked bodies are capped while read.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			abortTooLarge(c, limit)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// IsBodyTooLarge reports whether err came from a body cut off by BodyLimit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func abortTooLarge(c *gin.Context, limit int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"error":   "Payload too large",
		"message": fmt.Sprintf("Request body exceeds %d bytes", limit),
	})
}

// NotFound answers unknown routes with the gateway's JSON error shape.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"message": fmt.Sprintf("Route %s %s not found", c.Request.Method, c.Request.URL.Path),
		})
	}
}
