package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Fetch      FetchConfig
	Guard      GuardConfig
	Cache      CacheConfig
	Screenshot ScreenshotConfig
	Session    SessionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"3000"`
	Host           string        `envconfig:"HOST" default:"0.0.0.0"`
	PublicURL      string        `envconfig:"API_URL" default:"http://localhost:3000"`
	BodyLimit      int64         `envconfig:"REQUEST_SIZE_LIMIT" default:"10485760"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	ShutdownGrace  time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
	Environment    string        `envconfig:"ENV" default:"production"`
}

// Development reports whether error responses may carry internal detail.
func (s ServerConfig) Development() bool {
	env := strings.ToLower(s.Environment)
	return env == "development" || env == "dev"
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int  `envconfig:"RATE_LIMIT_PER_MINUTE" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// FetchConfig holds outbound fetch configuration.
type FetchConfig struct {
	Timeout      time.Duration `envconfig:"MAX_PROXY_TIMEOUT" default:"10s"`
	MaxRedirects int           `envconfig:"MAX_REDIRECTS" default:"5"`
	UserAgent    string        `envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
}

// GuardConfig holds URL guard configuration.
type GuardConfig struct {
	BlacklistedDomains []string `envconfig:"BLACKLISTED_DOMAINS"`
	BlacklistFile      string   `envconfig:"BLACKLIST_FILE"`
}

// CacheConfig holds cache store configuration.
type CacheConfig struct {
	Backend       string        `envconfig:"CACHE_BACKEND" default:"redis"`
	RedisURL      string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	Dir           string        `envconfig:"CACHE_DIR" default:"./data/cache"`
	DocumentTTL   time.Duration `envconfig:"CACHE_TTL" default:"300s"`
	ContentTTL    time.Duration `envconfig:"CONTENT_CACHE_TTL" default:"900s"`
	ScreenshotTTL time.Duration `envconfig:"SCREENSHOT_CACHE_TTL" default:"900s"`
	Compress      bool          `envconfig:"CACHE_COMPRESS" default:"true"`
	Coalesce      bool          `envconfig:"CACHE_COALESCE" default:"false"`
}

// ScreenshotConfig holds headless capture configuration.
type ScreenshotConfig struct {
	ViewportWidth  int           `envconfig:"VIEWPORT_WIDTH" default:"1920"`
	ViewportHeight int           `envconfig:"VIEWPORT_HEIGHT" default:"1080"`
	Quality        int           `envconfig:"SCREENSHOT_QUALITY" default:"85"`
	Timeout        time.Duration `envconfig:"SCREENSHOT_TIMEOUT" default:"30s"`
	Settle         time.Duration `envconfig:"SCREENSHOT_SETTLE" default:"1s"`
	ChromePath     string        `envconfig:"CHROME_PATH"`
	WidgetCDNURL   string        `envconfig:"WIDGET_CDN_URL"`
}

// SessionConfig holds preview session configuration.
type SessionConfig struct {
	TTL      time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	ShareTTL time.Duration `envconfig:"SHARE_TTL" default:"24h"`
}

// blacklistFile is the on-disk shape of BLACKLIST_FILE.
type blacklistFile struct {
	Domains []string `yaml:"domains"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Guard.BlacklistFile != "" {
		domains, err := LoadBlacklistFile(cfg.Guard.BlacklistFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Guard.BlacklistedDomains = append(cfg.Guard.BlacklistedDomains, domains...)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadBlacklistFile reads a YAML document of the form `domains: [a.com, b.com]`.
func LoadBlacklistFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blacklist file: %w", err)
	}

	var file blacklistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse blacklist file %s: %w", path, err)
	}

	domains := make([]string, 0, len(file.Domains))
	for _, d := range file.Domains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return domains, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "3000",
			Host:           "0.0.0.0",
			PublicURL:      "http://localhost:3000",
			BodyLimit:      10 << 20,
			AllowedOrigins: []string{"*"},
			ShutdownGrace:  10 * time.Second,
			Environment:    "production",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 100,
			Enabled:           true,
		},
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			MaxRedirects: 5,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Cache: CacheConfig{
			Backend:       "redis",
			RedisURL:      "redis://localhost:6379",
			Dir:           "./data/cache",
			DocumentTTL:   5 * time.Minute,
			ContentTTL:    15 * time.Minute,
			ScreenshotTTL: 15 * time.Minute,
			Compress:      true,
		},
		Screenshot: ScreenshotConfig{
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			Quality:        85,
			Timeout:        30 * time.Second,
			Settle:         time.Second,
		},
		Session: SessionConfig{
			TTL:      24 * time.Hour,
			ShareTTL: 24 * time.Hour,
		},
	}
}
