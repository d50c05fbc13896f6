package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Use the route template so /api/preview/:id does not explode cardinality
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			int64(c.Writer.Size()),
		)
	}
}

// Timer measures a rendering attempt
type Timer struct {
	start    time.Time
	metrics  *Metrics
	strategy string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, strategy string) *Timer {
	return &Timer{
		start:    time.Now(),
		metrics:  metrics,
		strategy: strategy,
	}
}

// Stop records the attempt with its outcome and returns the elapsed time
func (t *Timer) Stop(outcome string) time.Duration {
	d := time.Since(t.start)
	t.metrics.RecordAttempt(t.strategy, outcome, d)
	return d
}
