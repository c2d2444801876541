// Package cache provides the byte-oriented read-through cache used for
// session details. The store stays authoritative; a cache entry is only a
// copy that is dropped on every write to the session it describes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque values under string keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SessionKey is the cache key of a session detail.
func SessionKey(id fmt.Stringer) string {
	return "session:" + id.String()
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a go-redis client to addr.
func NewRedis(addr, password string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})}
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set stores val under key for ttl.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Local is an in-process Cache backed by freecache. Entries are evicted
// when the configured size is exhausted.
type Local struct {
	cache *freecache.Cache
}

// NewLocal allocates a cache of sizeMB megabytes.
func NewLocal(sizeMB int) *Local {
	return &Local{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	val, err := l.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrMiss
	}
	return val, err
}

func (l *Local) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	expire := int(ttl.Seconds())
	if expire < 1 && ttl > 0 {
		expire = 1
	}
	return l.cache.Set([]byte(key), val, expire)
}

func (l *Local) Delete(_ context.Context, key string) error {
	l.cache.Del([]byte(key))
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                     { return nil }
