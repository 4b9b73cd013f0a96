// Package cache holds the optional Redis cache in front of the post list.
package cache

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ghosttalk/ghosttalk/config"
)

// RedisCache stores serialized responses under string keys.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	scanCount int64
	log       *zap.Logger
}

const (
	defaultScanCount = 1000
	maxScanRounds    = 10
)

// NewRedis builds a cache from config. It returns nil when Redis is not configured.
func NewRedis(cfg config.AppConfig, log *zap.Logger) *RedisCache {
	if cfg.RedisHost == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	return New(client, ttl, log)
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, scanCount: defaultScanCount, log: log}
}

// Ping checks connectivity. While Redis is unreachable every lookup is a miss.
func (c *RedisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// GetBytes returns cached bytes for key.
func (c *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

// SetBytes stores b under key with the configured TTL.
func (c *RedisCache) SetBytes(ctx context.Context, key string, b []byte) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Generation returns the counter stored at key, 0 when it was never bumped.
func (c *RedisCache) Generation(ctx context.Context, key string) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	gen, err := c.client.Get(ctx, key).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		c.log.Debug("cache generation read failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
}

// BumpGeneration increments the counter at key. The counter never expires.
func (c *RedisCache) BumpGeneration(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		c.log.Warn("cache generation bump failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateByPrefix deletes keys that match prefix using SCAN, for at most maxScanRounds pages.
func (c *RedisCache) InvalidateByPrefix(ctx context.Context, prefix string) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < maxScanRounds; i++ {
		keys, cur, err := c.client.Scan(ctx, cursor, prefix+"*", c.scanCount).Result()
		if err != nil {
			c.log.Warn("cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
