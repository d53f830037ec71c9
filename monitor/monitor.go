// Package monitor implements a goroutine-blocking, optionally bounded queue
// over any Collection.
//
// Producers wait while the queue is full, consumers wait while it is empty,
// and Close wakes every waiter. The queue itself does not care about order:
// that is decided by the Collection it guards (FIFO, LIFO, heap, buckets).
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/metrics"
)

// WaitMode selects how TryDequeue and TryPeek behave on an empty queue.
type WaitMode int

const (
	// Poll never waits.
	Poll WaitMode = iota
	// Block waits until an item arrives, or reports false once the
	// queue is closed and empty.
	Block
	// BlockAcrossClose waits until an item arrives, ignoring close and
	// reopen cycles in between.
	BlockAcrossClose
)

// Queue is a goroutine-safe queue with open/close semantics and an optional
// size bound, parameterized over its inner Collection.
type Queue[T any] struct {
	// synchronization primitive
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	drained  *sync.Cond

	inner   Collection[T]
	maxSize int
	closed  bool

	name    string
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New wraps inner. The queue starts open and unbounded unless
// configured otherwise.
func New[T any](inner Collection[T], opts ...common.Option) (*Queue[T], error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: nil collection", common.ErrInvalidArgument)
	}
	cfg, err := common.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(inner, cfg, "monitor")
}

// NewWithConfig is New for callers that already hold a Config.
// kind labels the queue's metrics.
func NewWithConfig[T any](inner Collection[T], cfg common.Config, kind string) (*Queue[T], error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: nil collection", common.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	q := &Queue[T]{
		inner:   inner,
		maxSize: cfg.MaxSize,
		closed:  cfg.StartClosed,
		name:    cfg.Name,
		logger:  cfg.Logger,
		metrics: metrics.New(cfg.Meter, kind, cfg.Name),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q, nil
}

// Name returns the queue name used in logs and metrics.
func (q *Queue[T]) Name() string { return q.name }

// Count returns the number of items held.
func (q *Queue[T]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inner.Len()
}

// IsClosed reports whether the queue is closed.
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// MaxSize returns the size bound, or common.Unbounded.
func (q *Queue[T]) MaxSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxSize
}

// SetMaxSize changes the size bound. Producers waiting on the old bound
// are woken to re-check against the new one.
func (q *Queue[T]) SetMaxSize(n int) error {
	if err := common.ValidateMaxSize(n); err != nil {
		return err
	}
	q.mu.Lock()
	q.maxSize = n
	q.notFull.Broadcast()
	q.mu.Unlock()
	return nil
}

// Open marks the queue open again. Items already held are kept.
func (q *Queue[T]) Open() {
	q.mu.Lock()
	q.closed = false
	count := q.inner.Len()
	q.mu.Unlock()

	q.logger.Debug("queue opened",
		slog.String("queue", q.name),
		slog.Int("count", count),
	)
}

// Close stops the queue from accepting new items and wakes every waiter.
// Items already held can still be dequeued. Calling Close twice is harmless.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.broadcastAll()
	q.mu.Unlock()

	q.logger.Debug("queue closed", slog.String("queue", q.name))
}

// Clear drops every held item without closing the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	n := q.inner.Len()
	q.inner.Clear()
	q.notFull.Broadcast()
	q.drained.Broadcast()
	q.mu.Unlock()

	q.metrics.Cleared(context.Background(), n)
	q.logger.Debug("queue cleared",
		slog.String("queue", q.name),
		slog.Int("discarded", n),
	)
}

// Enqueue adds item, waiting while a bounded queue is full.
// It returns common.ErrQueueIsClosed if the queue is, or becomes, closed
// before the item could be added.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	for !q.closed && q.isFull() {
		q.notFull.Wait()
	}
	if q.closed {
		q.mu.Unlock()
		q.metrics.DroppedClosed(context.Background(), 1)
		return common.ErrQueueIsClosed
	}
	return q.enqueueLocked(item)
}

// EnqueueForce adds item right away, ignoring both the size bound and the
// closed flag. It is meant for putting back an item that was already taken
// out, which must never wait or be lost.
func (q *Queue[T]) EnqueueForce(item T) error {
	q.mu.Lock()
	return q.enqueueLocked(item)
}

// enqueueLocked must be called with q.mu held; it releases it.
func (q *Queue[T]) enqueueLocked(item T) error {
	if err := q.inner.Enqueue(item); err != nil {
		q.mu.Unlock()
		return err
	}
	q.notEmpty.Signal()
	q.mu.Unlock()

	q.metrics.Enqueued(context.Background(), 1)
	return nil
}

// Dequeue removes the next item, waiting while the queue is empty.
// It returns common.ErrQueueIsClosed once the queue is closed and empty.
func (q *Queue[T]) Dequeue() (T, error) {
	item, ok := q.TryDequeue(Block)
	if !ok {
		return item, common.ErrQueueIsClosed
	}
	return item, nil
}

// TryDequeue removes the next item, waiting according to mode.
func (q *Queue[T]) TryDequeue(mode WaitMode) (T, bool) {
	q.mu.Lock()
	if !q.waitLocked(mode) {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	item := q.dequeueLocked()
	q.mu.Unlock()

	q.metrics.Dequeued(context.Background(), 1)
	return item, true
}

// DequeueContext is Dequeue that also gives up when ctx is done,
// returning ctx.Err(). Nothing is removed from the queue in that case.
func (q *Queue[T]) DequeueContext(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	// the waiter can only notice cancellation when woken
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	for q.inner.Len() == 0 {
		if q.closed {
			q.mu.Unlock()
			return zero, common.ErrQueueIsClosed
		}
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return zero, err
		}
		q.notEmpty.Wait()
	}
	item := q.dequeueLocked()
	q.mu.Unlock()

	q.metrics.Dequeued(ctx, 1)
	return item, nil
}

// Peek returns the next item without removing it, waiting while the queue
// is empty. It returns common.ErrQueueIsClosed once the queue is closed and empty.
func (q *Queue[T]) Peek() (T, error) {
	item, ok := q.TryPeek(Block)
	if !ok {
		return item, common.ErrQueueIsClosed
	}
	return item, nil
}

// TryPeek returns the next item without removing it, waiting according to mode.
func (q *Queue[T]) TryPeek(mode WaitMode) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.waitLocked(mode) {
		var zero T
		return zero, false
	}
	item, _ := q.inner.Peek()
	// the item stays, pass the wakeup on to another waiter
	q.notEmpty.Signal()
	return item, true
}

// WaitUntilEmpty blocks until every held item has been taken out.
func (q *Queue[T]) WaitUntilEmpty() {
	q.mu.Lock()
	for q.inner.Len() > 0 {
		q.drained.Wait()
	}
	q.mu.Unlock()
}

// WaitUntilEmptyContext is WaitUntilEmpty that gives up when ctx is done.
func (q *Queue[T]) WaitUntilEmptyContext(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.drained.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.inner.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.drained.Wait()
	}
	return nil
}

// waitLocked waits for an item according to mode and reports whether one
// is available. Must be called with q.mu held.
func (q *Queue[T]) waitLocked(mode WaitMode) bool {
	for q.inner.Len() == 0 {
		switch {
		case mode == Poll:
			return false
		case mode == Block && q.closed:
			return false
		}
		q.notEmpty.Wait()
	}
	return true
}

// dequeueLocked must be called with q.mu held and a non-empty inner.
func (q *Queue[T]) dequeueLocked() T {
	item, ok := q.inner.Dequeue()
	if !ok {
		panic("Broken implementation: collection reported items but returned none")
	}
	q.notFull.Signal()
	if q.inner.Len() == 0 {
		q.drained.Broadcast()
	} else {
		// more items left, let the next consumer through
		q.notEmpty.Signal()
	}
	return item
}

func (q *Queue[T]) isFull() bool {
	return q.maxSize != common.Unbounded && q.inner.Len() >= q.maxSize
}

func (q *Queue[T]) broadcastAll() {
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.drained.Broadcast()
}
