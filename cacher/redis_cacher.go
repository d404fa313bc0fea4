package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrFetchAbandoned is returned by a waiter when the holder of a key's fill
// lock released it without storing a value.
var ErrFetchAbandoned = errors.New("cache fill abandoned")

const (
	fillLockTTL     = 30 * time.Second
	fillWaitTimeout = 30 * time.Second
	fillMinBackoff  = 10 * time.Millisecond
	fillMaxBackoff  = 500 * time.Millisecond
)

// releaseLock deletes a fill lock only if it still holds the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisCacher stores JSON-encoded values in Redis under a namespace so that
// several cachers can share one database. Concurrent misses across processes
// are coordinated with a SETNX fill lock.
type RedisCacher[T any] struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisCacher creates a cacher storing keys as "{namespace}:{key}".
//
// Parameters:
//   - client: A connected Redis client
//   - namespace: Prefix isolating this cacher's keys
//
// Returns:
//   - A new RedisCacher
func NewRedisCacher[T any](client redis.UniversalClient, namespace string) *RedisCacher[T] {
	return &RedisCacher[T]{client: client, namespace: namespace}
}

func (c *RedisCacher[T]) key(key string) string {
	return c.namespace + ":" + key
}

// get returns the decoded value and whether it was present.
func (c *RedisCacher[T]) get(ctx context.Context, key string) (T, bool, error) {
	var val T

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return val, false, nil
	}
	if err != nil {
		return val, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, &val); err != nil {
		return val, false, fmt.Errorf("decode cached %s: %w", key, err)
	}

	return val, true, nil
}

func (c *RedisCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	var zero T
	full := c.key(key)

	if val, ok, err := c.get(ctx, full); err != nil || ok {
		return val, err
	}

	lockKey := full + ":lock"
	token := strconv.FormatInt(time.Now().UnixNano(), 36)
	acquired, err := c.client.SetNX(ctx, lockKey, token, fillLockTTL).Result()
	if err != nil {
		return zero, fmt.Errorf("acquire fill lock %s: %w", lockKey, err)
	}
	if !acquired {
		return c.await(ctx, full, lockKey)
	}

	defer releaseLock.Run(context.WithoutCancel(ctx), c.client, []string{lockKey}, token)

	val, err := fetchFn(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(val)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", key, err)
	}

	if err := c.client.Set(ctx, full, data, ttl).Err(); err != nil {
		return zero, fmt.Errorf("redis set %s: %w", full, err)
	}

	return val, nil
}

// await polls with exponential backoff until another process fills key or
// drops its lock.
func (c *RedisCacher[T]) await(ctx context.Context, key, lockKey string) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, fillWaitTimeout)
	defer cancel()

	backoff := fillMinBackoff
	for {
		if val, ok, err := c.get(ctx, key); err != nil || ok {
			return val, err
		}

		held, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return zero, fmt.Errorf("check fill lock %s: %w", lockKey, err)
		}
		if held == 0 {
			if val, ok, err := c.get(ctx, key); err != nil || ok {
				return val, err
			}

			return zero, fmt.Errorf("%w: %s", ErrFetchAbandoned, key)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, fillMaxBackoff)
	}
}

func (c *RedisCacher[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

func (c *RedisCacher[T]) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan %s: %w", prefix, err)
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}

	return int(deleted), nil
}

// Clear removes this cacher's namespace only; other data in the database is
// left alone.
func (c *RedisCacher[T]) Clear(ctx context.Context) error {
	_, err := c.DeleteByPrefix(ctx, "")
	return err
}
