package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int
	// IdleTTL evicts limiters for clients not seen within the window.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns production-ready rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 100,
		IdleTTL:           10 * time.Minute,
	}
}

// retryAfterSeconds is reported to throttled callers.
const retryAfterSeconds = 60

// RateLimit creates a per-IP rate limiting middleware. Each client gets a
// token bucket refilled at RequestsPerMinute with an equal burst.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRateLimitConfig().RequestsPerMinute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}

	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu        sync.Mutex
		clients   = make(map[string]*client)
		lastSweep = time.Now()
		every     = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	)

	message := fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute allowed.", cfg.RequestsPerMinute)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > cfg.IdleTTL {
			for key, cl := range clients {
				if now.Sub(cl.lastSeen) > cfg.IdleTTL {
					delete(clients, key)
				}
			}
			lastSweep = now
		}
		cl, exists := clients[ip]
		if !exists {
			cl = &client{limiter: rate.NewLimiter(every, cfg.RequestsPerMinute)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		limiter := cl.limiter
		mu.Unlock()

		if !limiter.Allow() {
			c.Header("Retry-After", fmt.Sprint(retryAfterSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests",
				"message":    message,
				"retryAfter": retryAfterSeconds,
			})
			return
		}

		c.Next()
	}
}
