package kv

import (
	"context"
	"errors"
	"time"

	"github.com/camr-club/ranking-hub/pkg/circuitbreaker"
	"github.com/camr-club/ranking-hub/pkg/logger"
	"github.com/camr-club/ranking-hub/pkg/timeutil"
)

// Status is the snapshot the status probe reports about the cache layer.
type Status struct {
	Enabled           bool          `json:"enabled"`
	Provider          string        `json:"provider,omitempty"`
	Connected         bool          `json:"connected"`
	Disabled          bool          `json:"disabled"`
	CooldownRemaining time.Duration `json:"cooldown_remaining,omitempty"`
	TripCount         int           `json:"trip_count,omitempty"`
}

// Client wraps a Provider so the rest of the system never sees a cache
// error. Every failure is logged and turned into a miss (Get) or a no-op
// (Set/Del); quota-limit errors additionally trip a 24-hour breaker that
// short-circuits all calls for the cooldown window.
//
// A nil *Client is valid and behaves as a permanently missing cache, so the
// KV layer can be switched off by configuration without nil checks at every
// call site.
type Client struct {
	provider Provider
	breaker  *circuitbreaker.Breaker
	log      *logger.Logger
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	cooldown time.Duration
	clock    timeutil.Clock
}

// WithCooldown overrides the breaker cooldown window.
func WithCooldown(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithClock overrides the clock used for cooldown accounting.
func WithClock(clock timeutil.Clock) ClientOption {
	return func(c *clientConfig) {
		c.clock = clock
	}
}

// NewClient wraps a provider in the resilient client.
func NewClient(provider Provider, log *logger.Logger, opts ...ClientOption) *Client {
	cfg := clientConfig{
		cooldown: circuitbreaker.DefaultCooldown,
		clock:    timeutil.SystemClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	log = log.With(logger.Component("kv"), logger.Provider(provider.Name()))

	breaker := circuitbreaker.New("kv:"+provider.Name(),
		circuitbreaker.WithCooldown(cfg.cooldown),
		circuitbreaker.WithClock(cfg.clock),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			if to == circuitbreaker.StateOpen {
				log.Warn("cache disabled after quota error",
					logger.String("breaker", name),
					logger.Duration("cooldown", cfg.cooldown))
				return
			}
			log.Info("cache re-enabled after cooldown", logger.String("breaker", name))
		}),
	)

	return &Client{provider: provider, breaker: breaker, log: log}
}

// Get returns the cached value and whether it was found. Provider errors and
// an open breaker both read as a miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || !c.breaker.Allow() {
		return nil, false
	}

	value, err := c.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			c.breaker.Record(err)
			c.log.Warn("cache get failed", logger.CacheKey(key), logger.Err(err))
		}
		return nil, false
	}
	return value, true
}

// Set stores a value, reporting whether the write happened. Failures are
// absorbed; the durable store remains the source of truth either way.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if c == nil || !c.breaker.Allow() {
		return false
	}

	if err := c.provider.Set(ctx, key, value, ttl); err != nil {
		c.breaker.Record(err)
		c.log.Warn("cache set failed", logger.CacheKey(key), logger.Err(err))
		return false
	}
	return true
}

// Del removes a key, reporting whether the delete was issued.
func (c *Client) Del(ctx context.Context, key string) bool {
	if c == nil || !c.breaker.Allow() {
		return false
	}

	if err := c.provider.Del(ctx, key); err != nil {
		c.breaker.Record(err)
		c.log.Warn("cache del failed", logger.CacheKey(key), logger.Err(err))
		return false
	}
	return true
}

// Status reports the cache layer's health for the status probe. The
// connectivity check is a live ping, skipped while the breaker is open.
func (c *Client) Status(ctx context.Context) Status {
	if c == nil {
		return Status{Enabled: false}
	}

	status := Status{
		Enabled:   true,
		Provider:  c.provider.Name(),
		TripCount: c.breaker.TripCount(),
	}
	if c.breaker.Open() {
		status.Disabled = true
		status.CooldownRemaining = c.breaker.Remaining()
		return status
	}

	status.Connected = c.provider.Ping(ctx) == nil
	return status
}

// Reset closes the breaker immediately. Exposed for the admin surface so an
// operator can re-enable the cache after raising the provider quota.
func (c *Client) Reset() {
	if c == nil {
		return
	}
	c.breaker.Reset()
}

// Close releases the provider connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.provider.Close()
}
