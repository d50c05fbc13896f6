// Package middleware provides the gateway's HTTP middleware.
//
// Middleware stack:
//   - CORS: origins from ALLOWED_ORIGINS; credentials are never combined with "*"
//   - RateLimit: per-IP token bucket, N requests per minute
//   - BodyLimit: 413 for request bodies above REQUEST_SIZE_LIMIT
//   - NotFound: JSON 404 for unknown routes
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(origins)))
//	router.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: 100}))
//	router.NoRoute(middleware.NotFound())
package middleware
