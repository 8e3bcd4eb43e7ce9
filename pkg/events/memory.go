package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process bus for single-instance deployments and tests
type MemoryBus struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewMemoryBus creates a bus buffering up to size undelivered events
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 256
	}
	return &MemoryBus{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Publish enqueues evt, blocking while the buffer is full
func (b *MemoryBus) Publish(ctx context.Context, evt Event) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	select {
	case b.ch <- evt:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe delivers events until ctx is done or Close is called. Handler errors
// are returned to the caller and stop the subscription.
func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler) error {
	for {
		select {
		case evt := <-b.ch:
			if err := handler(ctx, evt); err != nil {
				return err
			}
		case <-b.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops subscribers and rejects further publishes
func (b *MemoryBus) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}
