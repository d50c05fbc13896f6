package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/resilience"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	URL      string
	Password string
	// Timeout bounds each command. Default is 1s.
	Timeout time.Duration
	Logger  *zap.Logger

	// Client overrides URL and Password. ClientCloser, if set, is closed
	// with the store.
	Client       redis.Cmdable
	ClientCloser io.Closer
}

// RedisStore is a Store backed by redis. A breaker stops calling redis
// after repeated failures and probes it again later; while open every call
// fails fast and the Cache treats that as a miss.
type RedisStore struct {
	client  redis.Cmdable
	closer  io.Closer
	timeout time.Duration
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// NewRedisStore connects lazily; no command is issued until first use.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}

	client, closer := opts.Client, opts.ClientCloser
	if client == nil {
		ro, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if opts.Password != "" {
			ro.Password = opts.Password
		}
		ro.DialTimeout = opts.Timeout
		ro.ReadTimeout = opts.Timeout
		ro.WriteTimeout = opts.Timeout
		ro.MaxRetries = 0
		c := redis.NewClient(ro)
		client, closer = c, c
	}

	logger := opts.Logger
	breaker := resilience.New("redis", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Cache store breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &RedisStore{
		client:  client,
		closer:  closer,
		timeout: opts.Timeout,
		breaker: breaker,
		logger:  logger,
	}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := r.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		b, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		out = b
		return nil
	})
	return out, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return fmt.Errorf("redis set: %w", err)
		}
		return nil
	})
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	})
}

// Ping bypasses the breaker so health checks see the real state.
func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// BreakerState exposes the breaker for diagnostics.
func (r *RedisStore) BreakerState() resilience.State {
	return r.breaker.State()
}

func (r *RedisStore) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
