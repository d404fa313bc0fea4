// Package async runs game logic off the session read loop on a bounded
// worker pool and hands results back as futures.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool bounds how many submitted tasks run at once.
type Pool struct {
	sem *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool returns a pool running at most size tasks concurrently.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size %d", size)
	}

	return &Pool{sem: semaphore.NewWeighted(int64(size))}, nil
}

// Submit schedules fn on p. fn starts once a slot is free; if ctx is done
// before that, the future fails with ctx.Err() and fn never runs.
//
// Returns:
//   - A future completed with fn's result. Submitting to a closed pool
//     yields a future already failed with ErrPoolClosed.
func Submit[T any](p *Pool, ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return Failed[T](ErrPoolClosed)
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	f := newFuture[T]()
	go func() {
		defer p.wg.Done()

		var zero T
		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.complete(zero, err)
			return
		}
		defer p.sem.Release(1)

		if err := ctx.Err(); err != nil {
			f.complete(zero, err)
			return
		}

		f.complete(run(ctx, fn))
	}()

	return f
}

func run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return fn(ctx)
}

// Close stops accepting tasks and waits for accepted ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}
