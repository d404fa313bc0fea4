package cacher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a shared fetch started by MemoryCacher.
const DefaultFetchTimeout = 30 * time.Second

// MemoryCacher keeps values in process memory using go-cache. Concurrent
// misses on one key share a single fetch through singleflight. The shared
// fetch outlives any single caller's cancellation and is bounded by
// FetchTimeout instead.
type MemoryCacher[T any] struct {
	cache *cache.Cache
	group singleflight.Group

	// FetchTimeout bounds a shared fetch; 0 means DefaultFetchTimeout.
	FetchTimeout time.Duration
}

// NewMemoryCacher creates an in-memory cacher.
//
// Parameters:
//   - defaultExpiration: TTL used when GetOrFetch is given cache.DefaultExpiration
//   - cleanupInterval: How often expired entries are purged
//
// Returns:
//   - A new MemoryCacher
func NewMemoryCacher[T any](defaultExpiration, cleanupInterval time.Duration) *MemoryCacher[T] {
	return &MemoryCacher[T]{
		cache: cache.New(defaultExpiration, cleanupInterval),
	}
}

func (c *MemoryCacher[T]) lookup(key string) (T, bool) {
	if val, found := c.cache.Get(key); found {
		if typed, ok := val.(T); ok {
			return typed, true
		}
	}

	var zero T
	return zero, false
}

func (c *MemoryCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	if val, ok := c.lookup(key); ok {
		return val, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// a concurrent flight may have filled the entry
		if val, ok := c.lookup(key); ok {
			return val, nil
		}

		timeout := c.FetchTimeout
		if timeout <= 0 {
			timeout = DefaultFetchTimeout
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		fetched, err := fetchFn(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.cache.Set(key, fetched, ttl)
		return fetched, nil
	})

	var zero T
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		return zero, res.Err
	}

	typed, ok := res.Val.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type %T cached for key %s", res.Val, key)
	}

	return typed, nil
}

func (c *MemoryCacher[T]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Delete(key)
	return nil
}

func (c *MemoryCacher[T]) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	for key := range c.cache.Items() {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
			deleted++
		}
	}

	return deleted, nil
}

func (c *MemoryCacher[T]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Flush()
	return nil
}

// Len returns the number of entries, including expired ones not yet purged.
func (c *MemoryCacher[T]) Len() int {
	return c.cache.ItemCount()
}
