package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns the gateway CORS configuration. The preview
// and widget endpoints are embedded on arbitrary customer sites, so every
// origin is allowed unless a list is configured.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Accept",
			"Origin",
			"Cache-Control",
			"X-Requested-With",
		},
		ExposeHeaders: []string{"X-Cache", "X-Response-Time", "X-Trace-Id"},
		MaxAge:        12 * time.Hour,
	}
}

// WithOrigins returns a copy of cfg restricted to origins. An empty list
// keeps the wildcard.
func (cfg CORSConfig) WithOrigins(origins []string) CORSConfig {
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// CORS creates a CORS middleware with the provided configuration.
// Credentials are never combined with a wildcard origin.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*") {
		conf.AllowAllOrigins = true
		conf.AllowCredentials = false
	} else {
		conf.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(conf)
}
