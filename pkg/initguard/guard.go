// Package initguard provides keyed, lazy, one-time initialization of shared
// resources such as third-party API clients.
//
// Concurrent first callers for the same key share a single initialization and
// all wait for its result. A failed initialization is not remembered, so the
// next caller retries.
package initguard

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// InitFunc builds the value for a key
type InitFunc[T any] func(ctx context.Context) (T, error)

// Guard holds at most one initialized value per key
type Guard[T any] struct {
	group singleflight.Group

	mu    sync.RWMutex
	ready map[string]T
}

// New creates an empty Guard
func New[T any]() *Guard[T] {
	return &Guard[T]{ready: make(map[string]T)}
}

// Get returns the value for key, running init if no value exists yet.
// Waiting callers return early with ctx.Err() if ctx is done; the shared
// initialization itself keeps running.
func (g *Guard[T]) Get(ctx context.Context, key string, init InitFunc[T]) (T, error) {
	if v, ok := g.lookup(key); ok {
		return v, nil
	}

	initCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (interface{}, error) {
		// A caller may have finished between lookup and DoChan.
		if v, ok := g.lookup(key); ok {
			return v, nil
		}

		v, err := init(initCtx)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.ready[key] = v
		g.mu.Unlock()

		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Loaded reports whether key has been initialized
func (g *Guard[T]) Loaded(key string) bool {
	_, ok := g.lookup(key)
	return ok
}

func (g *Guard[T]) lookup(key string) (T, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.ready[key]
	return v, ok
}
