// Package cache implements the Redis-backed TTL store. It is
// advisory by construction. A redis.Nil miss, a nil client, or any backend
// error all degrade to "absent" rather than propagate as an error, since
// every caller must remain correct if Get always reports a miss.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"ragserver/internal/config"
	"ragserver/internal/logging"
)

type Redis struct {
	client redis.UniversalClient
}

func New(cfg config.CacheConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client}
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	if r == nil || r.client == nil {
		return "", false
	}
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logging.Log.WithError(err).WithField("key", key).Debug("cache get failed, treating as miss")
		}
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if r == nil || r.client == nil {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logging.Log.WithError(err).WithField("key", key).Debug("cache set failed")
	}
}
