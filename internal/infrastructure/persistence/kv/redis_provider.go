package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis provider.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Timeout bounds each individual command.
	Timeout time.Duration
}

// RedisProvider adapts a Redis connection to the Provider interface.
type RedisProvider struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisProvider connects to Redis and verifies the connection.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: redis ping failed: %w", err)
	}

	return &RedisProvider{client: client, timeout: cfg.Timeout}, nil
}

// Get implements Provider.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set implements Provider.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.client.Set(ctx, key, value, ttl).Err()
}

// Del implements Provider.
func (p *RedisProvider) Del(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.client.Del(ctx, key).Err()
}

// Ping implements Provider.
func (p *RedisProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.client.Ping(ctx).Err()
}

// Name implements Provider.
func (p *RedisProvider) Name() string {
	return "redis"
}

// Close implements Provider.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
