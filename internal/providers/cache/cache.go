package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/SitePreview/backend/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Kind names a class of entries with its own TTL.
type Kind string

const (
	KindDocument   Kind = "document"
	KindScreenshot Kind = "screenshot"
	KindContent    Kind = "content"
	KindShare      Kind = "share"
)

// value frame flags
const (
	frameRaw  byte = 0
	frameZstd byte = 1
)

// minCompressSize skips compression for values too small to benefit.
const minCompressSize = 512

const defaultLoadTimeout = time.Minute

// Options configures a Cache.
type Options struct {
	DocumentTTL   time.Duration
	ContentTTL    time.Duration
	ScreenshotTTL time.Duration
	ShareTTL      time.Duration
	Compress      bool
	// Coalesce collapses concurrent loads of the same key into one.
	Coalesce bool
	// LoadTimeout bounds a coalesced load, which runs detached from any
	// single caller's cancellation. Zero means one minute.
	LoadTimeout time.Duration
}

// DefaultOptions mirrors the default configuration.
func DefaultOptions() Options {
	return Options{
		DocumentTTL:   5 * time.Minute,
		ContentTTL:    15 * time.Minute,
		ScreenshotTTL: 15 * time.Minute,
		ShareTTL:      24 * time.Hour,
		Compress:      true,
	}
}

// Cache applies TTL policy, compression and graceful degradation on top
// of a Store.
type Cache struct {
	store   Store
	opts    Options
	hasher  *utils.Hasher
	logger  *zap.Logger
	metrics *monitoring.Metrics

	enc   *zstd.Encoder
	dec   *zstd.Decoder
	group singleflight.Group
}

// New wraps store. metrics may be nil.
func New(store Store, opts Options, logger *zap.Logger, metrics *monitoring.Metrics) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache: nil store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &Cache{
		store:   store,
		opts:    opts,
		hasher:  utils.DefaultHasher(),
		logger:  logger,
		metrics: metrics,
		enc:     enc,
		dec:     dec,
	}, nil
}

// DocumentKey identifies a processed document for (url, client).
func (c *Cache) DocumentKey(url, clientID string) string {
	return c.hasher.Key("proxy", url, clientID)
}

// ScreenshotKey identifies a capture for (url, client, device).
func (c *Cache) ScreenshotKey(url, clientID, device string) string {
	return c.hasher.Key("screenshot", url, clientID, device)
}

// ContentKey identifies extracted content for a url.
func (c *Cache) ContentKey(url string) string {
	return c.hasher.Key("content", url)
}

// ShareKey identifies a share token record.
func (c *Cache) ShareKey(token string) string {
	return "share:" + token
}

// TTL returns the lifetime used for kind.
func (c *Cache) TTL(kind Kind) time.Duration {
	switch kind {
	case KindDocument:
		return c.opts.DocumentTTL
	case KindScreenshot:
		return c.opts.ScreenshotTTL
	case KindContent:
		return c.opts.ContentTTL
	case KindShare:
		return c.opts.ShareTTL
	default:
		return c.opts.DocumentTTL
	}
}

// Get returns the value under key. Store failures are logged and reported
// as a miss.
func (c *Cache) Get(ctx context.Context, kind Kind, key string) ([]byte, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.metrics.RecordCache(string(kind), "miss")
		} else {
			c.metrics.RecordCache(string(kind), "error")
			c.logger.Warn("Cache read failed, treating as miss",
				zap.String("cache", string(kind)),
				zap.String("key", key),
				zap.Error(err))
		}
		return nil, false
	}

	value, err := c.decode(raw)
	if err != nil {
		c.metrics.RecordCache(string(kind), "error")
		c.logger.Warn("Cache entry corrupt, treating as miss",
			zap.String("cache", string(kind)),
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}

	c.metrics.RecordCache(string(kind), "hit")
	return value, true
}

// Set stores value with the kind's TTL. Failures are logged and dropped.
func (c *Cache) Set(ctx context.Context, kind Kind, key string, value []byte) {
	c.SetTTL(ctx, kind, key, value, c.TTL(kind))
}

// SetTTL stores value with an explicit TTL. Failures are logged and dropped.
func (c *Cache) SetTTL(ctx context.Context, kind Kind, key string, value []byte, ttl time.Duration) {
	if err := c.store.Set(ctx, key, c.encode(kind, value), ttl); err != nil {
		c.metrics.RecordCache(string(kind), "error")
		c.logger.Warn("Cache write failed",
			zap.String("cache", string(kind)),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	c.metrics.RecordCache(string(kind), "set")
}

// Delete removes key. Failures are logged and dropped.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// GetJSON decodes a JSON entry into v.
func (c *Cache) GetJSON(ctx context.Context, kind Kind, key string, v interface{}) bool {
	raw, ok := c.Get(ctx, kind, key)
	if !ok {
		return false
	}
	if err := sonic.Unmarshal(raw, v); err != nil {
		c.logger.Warn("Cache entry is not valid JSON",
			zap.String("cache", string(kind)),
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

// SetJSON encodes v as JSON and stores it.
func (c *Cache) SetJSON(ctx context.Context, kind Kind, key string, v interface{}, ttl time.Duration) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		c.logger.Warn("Cache value not encodable", zap.String("key", key), zap.Error(err))
		return
	}
	c.SetTTL(ctx, kind, key, raw, ttl)
}

// Loader produces a fresh value on a miss.
type Loader func(ctx context.Context) ([]byte, error)

// Fetch returns the cached value for key, or runs load and stores its
// result. With bypass the lookup is skipped but a successful load still
// overwrites the entry. hit reports whether the value came from the store.
func (c *Cache) Fetch(ctx context.Context, kind Kind, key string, bypass bool, load Loader) (value []byte, hit bool, err error) {
	if !bypass {
		if v, ok := c.Get(ctx, kind, key); ok {
			return v, true, nil
		}
	}

	if !c.opts.Coalesce {
		v, err := load(ctx)
		if err != nil {
			return nil, false, err
		}
		c.Set(ctx, kind, key, v)
		return v, false, nil
	}

	// shared loads outlive the caller that started them; each caller still
	// stops waiting when its own ctx ends
	ch := c.group.DoChan(string(kind)+"|"+key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout())
		defer cancel()

		v, err := load(lctx)
		if err != nil {
			return nil, err
		}
		c.Set(lctx, kind, key, v)
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *Cache) loadTimeout() time.Duration {
	if c.opts.LoadTimeout > 0 {
		return c.opts.LoadTimeout
	}
	return defaultLoadTimeout
}

// Ping checks store connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

// Close releases the codec and the store.
func (c *Cache) Close() error {
	c.dec.Close()
	_ = c.enc.Close()
	return c.store.Close()
}

func (c *Cache) encode(kind Kind, value []byte) []byte {
	// JPEG bytes do not compress
	if c.opts.Compress && kind != KindScreenshot && len(value) >= minCompressSize {
		out := make([]byte, 1, len(value)/2+1)
		out[0] = frameZstd
		return c.enc.EncodeAll(value, out)
	}
	out := make([]byte, 1+len(value))
	out[0] = frameRaw
	copy(out[1:], value)
	return out
}

func (c *Cache) decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty frame")
	}
	switch raw[0] {
	case frameRaw:
		return raw[1:], nil
	case frameZstd:
		return c.dec.DecodeAll(raw[1:], nil)
	default:
		return nil, fmt.Errorf("unknown frame flag %d", raw[0])
	}
}
