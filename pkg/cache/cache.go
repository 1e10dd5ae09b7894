package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found in cache
var ErrNotFound = errors.New("key not found in cache")

// Store is a JSON value cache with per-key TTL.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Ping(ctx context.Context) error
	Close() error
}
