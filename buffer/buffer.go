// Package buffer provides a FIFO hand-off buffer for cooperative producers
// and consumers.
//
// Writers of a bounded buffer wait for a free slot, readers wait for data,
// and both give up when their context is done. Once completed, a buffer
// accepts no more writes but keeps handing out what it holds.
package buffer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/aarondwi/ordq/circular"
	"github.com/aarondwi/ordq/common"
)

const defaultRingSize = 16

var closedCh = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Buffer is a goroutine-safe FIFO with completion.
type Buffer[T any] struct {
	mu        sync.Mutex
	ring      *circular.Ring[T]
	completed bool

	// ready is closed, then forgotten, whenever a write or Complete happens.
	// It is created lazily by the first reader that has to wait.
	ready chan struct{}

	// slots holds one permit per free slot, nil when unbounded
	slots   *semaphore.Weighted
	maxSize int

	// done is cancelled by Complete, so waiting writers give up
	done       context.Context
	cancelDone context.CancelFunc
}

// New creates a buffer holding at most maxSize items,
// or any number of them with common.Unbounded.
func New[T any](maxSize int) (*Buffer[T], error) {
	if err := common.ValidateMaxSize(maxSize); err != nil {
		return nil, err
	}
	size := defaultRingSize
	b := &Buffer[T]{maxSize: maxSize}
	if maxSize != common.Unbounded {
		b.slots = semaphore.NewWeighted(int64(maxSize))
		size = min(size, maxSize)
	}
	b.ring = circular.NewRing[T](size)
	b.done, b.cancelDone = context.WithCancel(context.Background())
	return b, nil
}

// MaxSize returns the size bound, or common.Unbounded.
func (b *Buffer[T]) MaxSize() int { return b.maxSize }

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Len()
}

// Completed reports whether Complete was called.
func (b *Buffer[T]) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// TryWrite adds v if there is room right now and the buffer is not completed.
func (b *Buffer[T]) TryWrite(v T) bool {
	if b.slots != nil && !b.slots.TryAcquire(1) {
		return false
	}
	return b.push(v) == nil
}

// Write adds v, waiting for room in a bounded buffer.
// It returns common.ErrQueueIsClosed once the buffer is completed,
// or ctx.Err() if ctx is done first.
func (b *Buffer[T]) Write(ctx context.Context, v T) error {
	if b.slots != nil && !b.slots.TryAcquire(1) {
		if err := b.acquire(ctx); err != nil {
			return err
		}
	}
	return b.push(v)
}

func (b *Buffer[T]) acquire(ctx context.Context) error {
	if b.Completed() {
		return common.ErrQueueIsClosed
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.done, cancel)
	defer stop()

	if err := b.slots.Acquire(wctx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return common.ErrQueueIsClosed
	}
	return nil
}

// push must be called with a permit already held when bounded.
func (b *Buffer[T]) push(v T) error {
	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		b.release(1)
		return common.ErrQueueIsClosed
	}
	b.ring.Push(v)
	b.wakeLocked()
	b.mu.Unlock()
	return nil
}

// TryRead removes the oldest item, if any.
func (b *Buffer[T]) TryRead() (T, bool) {
	b.mu.Lock()
	v, ok := b.ring.Pop()
	b.mu.Unlock()
	if ok {
		b.release(1)
	}
	return v, ok
}

// Ready returns a channel that is closed once an item is buffered or the
// buffer is completed. It is already closed if either holds now.
func (b *Buffer[T]) Ready() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring.Len() > 0 || b.completed {
		return closedCh
	}
	if b.ready == nil {
		b.ready = make(chan struct{})
	}
	return b.ready
}

// WaitToRead waits until an item is buffered, reporting true, or until the
// buffer is completed and empty, reporting false. It returns ctx.Err() if
// ctx is done first. Nothing is removed from the buffer.
func (b *Buffer[T]) WaitToRead(ctx context.Context) (bool, error) {
	for {
		b.mu.Lock()
		if b.ring.Len() > 0 {
			b.mu.Unlock()
			return true, nil
		}
		if b.completed {
			b.mu.Unlock()
			return false, nil
		}
		b.mu.Unlock()

		select {
		case <-b.Ready():
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Complete stops the buffer from accepting writes and wakes every waiter.
// Buffered items can still be read. Calling it twice is harmless.
func (b *Buffer[T]) Complete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed {
		return
	}
	b.completed = true
	b.cancelDone()
	b.wakeLocked()
}

// Discard drops every buffered item and returns how many there were.
func (b *Buffer[T]) Discard() int {
	b.mu.Lock()
	n := b.ring.Len()
	b.ring.Clear()
	b.mu.Unlock()
	b.release(n)
	return n
}

func (b *Buffer[T]) release(n int) {
	if b.slots != nil && n > 0 {
		b.slots.Release(int64(n))
	}
}

func (b *Buffer[T]) wakeLocked() {
	if b.ready != nil {
		close(b.ready)
		b.ready = nil
	}
}
