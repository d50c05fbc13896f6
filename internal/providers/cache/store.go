package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by a Store for missing or expired keys.
	ErrNotFound = errors.New("cache: key not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache: store closed")
)

// Store is a key/value backend with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendRedis   = "redis"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// StoreOptions selects and configures a backend.
type StoreOptions struct {
	Backend       string
	RedisURL      string
	RedisPassword string
	Dir           string
	Timeout       time.Duration
	Logger        *zap.Logger
}

// Open builds the configured Store.
func Open(opts StoreOptions) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendRedis, "":
		return NewRedisStore(RedisOptions{
			URL:      opts.RedisURL,
			Password: opts.RedisPassword,
			Timeout:  opts.Timeout,
			Logger:   opts.Logger,
		})
	case BackendLevelDB:
		return OpenLevelDB(opts.Dir, opts.Logger)
	case BackendMemory:
		return NewMemoryStore(time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
