package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis stores entries as plain string keys under a prefix.
type Redis struct {
	client *redis.Client
	prefix string
	quota  int64
}

// NewRedis creates a Redis store. Keys are namespaced with prefix and the
// quota covers every key under it.
func NewRedis(client *redis.Client, prefix string, quota int64) *Redis {
	return &Redis{client: client, prefix: prefix, quota: quota}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("client.Get(%s) > %w", key, err)
	}
	return value, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if r.quota > 0 {
		used, err := r.usage(ctx, r.prefix+key)
		if err != nil {
			return err
		}
		if err := checkQuota(r.quota, used, entrySize(key, value)); err != nil {
			return err
		}
	}
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		if strings.HasPrefix(err.Error(), "OOM") {
			return fmt.Errorf("client.Set(%s) > %w: %w", key, ErrQuotaExceeded, err)
		}
		return fmt.Errorf("client.Set(%s) > %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("client.Del(%s) > %w", key, err)
	}
	return nil
}

func (r *Redis) usage(ctx context.Context, except string) (int64, error) {
	var used int64
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		if fullKey == except {
			continue
		}
		size, err := r.client.StrLen(ctx, fullKey).Result()
		if err != nil {
			return 0, fmt.Errorf("client.StrLen(%s) > %w", fullKey, err)
		}
		used += int64(len(strings.TrimPrefix(fullKey, r.prefix))) + size
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("client.Scan(%s*) > %w", r.prefix, err)
	}
	return used, nil
}
