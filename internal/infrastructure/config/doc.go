// Package config provides 12-factor configuration management for the preview gateway.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML file can extend the domain blacklist.
//
// Configuration Sections:
//   - Server: HTTP listener, public URL, CORS origins, body size limit
//   - Logging: Log level and output format
//   - RateLimit: Per-IP requests-per-minute limiting for /api routes
//   - Fetch: Outbound fetch timeout, redirect cap and User-Agent
//   - Guard: Blacklisted domains (env list and YAML file)
//   - Cache: Backend selection and per-use-case TTLs
//   - Screenshot: Viewport, JPEG quality, navigation timeout
//   - Session: Preview session and share link lifetimes
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, API_URL, ALLOWED_ORIGINS, REQUEST_SIZE_LIMIT, ENV
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_PER_MINUTE, RATE_LIMIT_ENABLED
//   - MAX_PROXY_TIMEOUT, MAX_REDIRECTS, USER_AGENT
//   - BLACKLISTED_DOMAINS, BLACKLIST_FILE
//   - CACHE_BACKEND, REDIS_URL, REDIS_PASSWORD, CACHE_DIR, CACHE_TTL,
//     CONTENT_CACHE_TTL, SCREENSHOT_CACHE_TTL, CACHE_COMPRESS, CACHE_COALESCE
//   - VIEWPORT_WIDTH, VIEWPORT_HEIGHT, SCREENSHOT_QUALITY, SCREENSHOT_TIMEOUT,
//     SCREENSHOT_SETTLE, CHROME_PATH, WIDGET_CDN_URL
//   - SESSION_TTL, SHARE_TTL
package config
