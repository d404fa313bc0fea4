// Package cacher caches the results of slow lookups behind a small
// interface with an in-memory and a Redis backend.
package cacher

import (
	"context"
	"time"
)

// FetchFunc loads a value from its source on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cacher stores values of type T by key and loads missing ones at most once
// per key at a time.
type Cacher[T any] interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn and
	// caches its result for ttl. A failed fetch is not cached.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key
	//   - ttl: Time-to-live of a freshly fetched value
	//   - fetchFn: Loads the value on a miss
	//
	// Returns:
	//   - The cached or fetched value
	//   - An error if the backend or fetchFn fails
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every key starting with prefix.
	//
	// Returns:
	//   - The number of keys removed
	//   - An error if the backend fails
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// Clear removes every key owned by this cacher.
	Clear(ctx context.Context) error
}

// Method is one row of a caching table: a service call together with how
// its result is cached.
type Method[A, T any] struct {
	// Call performs the uncached operation.
	Call func(ctx context.Context, arg A) (T, error)

	// Key derives the cache key from the call's argument. Unused when
	// Bypass is set.
	Key func(arg A) string

	// Bypass sends every call straight to Call.
	Bypass bool
}

// Wrap composes m with c.
//
// Parameters:
//   - c: The cache backing m; may be nil when m.Bypass is set
//   - ttl: Time-to-live of cached results
//   - m: The call and its caching rule
//
// Returns:
//   - A function with the same shape as m.Call
func Wrap[A, T any](c Cacher[T], ttl time.Duration, m Method[A, T]) func(ctx context.Context, arg A) (T, error) {
	if m.Bypass || c == nil {
		return m.Call
	}

	return func(ctx context.Context, arg A) (T, error) {
		return c.GetOrFetch(ctx, m.Key(arg), ttl, func(ctx context.Context) (T, error) {
			return m.Call(ctx, arg)
		})
	}
}
