package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// L2 is the shared second cache tier. It is optional: the tiered cache
// works with the memory tier alone.
type L2 interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Close() error
}

// RedisCacheConfig holds the Redis connection configuration.
type RedisCacheConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DefaultTTL   time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "learn:",
		DefaultTTL:   30 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
	}
}

// RedisCache is a Redis-backed L2 tier. Failures are logged and treated
// as misses so a Redis outage only costs latency.
type RedisCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config *RedisCacheConfig) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	slog.Info("Redis cache connected", "addr", config.Addr)

	return &RedisCache{
		client:     client,
		keyPrefix:  config.KeyPrefix,
		defaultTTL: config.DefaultTTL,
	}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("failed to get cache value", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (r *RedisCache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.fullKey(key), value, ttl).Err(); err != nil {
		slog.Warn("failed to set cache value", "key", key, "error", err)
	}
}

func (r *RedisCache) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		slog.Warn("failed to delete cache value", "key", key, "error", err)
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) fullKey(key string) string {
	return r.keyPrefix + key
}
