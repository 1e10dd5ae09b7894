package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v2"
)

// LocalCache is an in-process LRU used when Redis is disabled. Values are
// kept as JSON so Get behaves exactly like the Redis store.
type LocalCache struct {
	cache  *ccache.Cache
	prefix string
}

// NewLocalCache creates a cache holding at most maxSize entries.
func NewLocalCache(maxSize int64, prefix string) *LocalCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LocalCache{
		cache: ccache.New(ccache.Configure().
			MaxSize(maxSize).
			ItemsToPrune(uint32(maxSize/10 + 1)).
			DeleteBuffer(256).
			PromoteBuffer(256).
			GetsPerPromote(3)),
		prefix: prefix,
	}
}

func (l *LocalCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	l.cache.Set(l.prefix+key, data, ttl)
	return nil
}

func (l *LocalCache) Get(_ context.Context, key string, dest interface{}) error {
	item := l.cache.Get(l.prefix + key)
	if item == nil || item.Expired() {
		return ErrNotFound
	}

	data, ok := item.Value().([]byte)
	if !ok {
		return fmt.Errorf("unexpected cache value for key %s", key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

func (l *LocalCache) Ping(context.Context) error { return nil }

func (l *LocalCache) Close() error {
	l.cache.Stop()
	return nil
}
