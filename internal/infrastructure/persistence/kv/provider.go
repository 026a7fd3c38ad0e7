// Package kv implements the optional external key-value cache layer. A
// provider adapter (managed Redis or its REST twin) sits behind a resilient
// client that absorbs every failure: callers see cache misses, never errors.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by providers for an absent key. The client
// translates it into a plain miss.
var ErrKeyNotFound = errors.New("kv: key not found")

// Provider is a minimal key-value backend. Implementations must return
// ErrKeyNotFound for missing keys and surface quota-limit errors verbatim so
// the client's breaker can classify them.
type Provider interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with a TTL. Zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Name identifies the provider in logs and the status probe.
	Name() string

	// Close releases the underlying connection.
	Close() error
}
