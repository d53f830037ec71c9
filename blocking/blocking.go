// Package blocking provides a goroutine-blocking queue that hands out values
// in priority order.
//
// It is a monitor.Queue whose inner collection is a priority heap; every
// waiting, bounding and closing rule of the monitor applies unchanged, only
// the dequeue order differs.
package blocking

import (
	"cmp"
	"context"
	"fmt"

	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/heap"
	"github.com/aarondwi/ordq/monitor"
)

// Queue is an ordered blocking queue. The lowest priority under the
// comparer is dequeued first. Priorities are never handed back to callers.
type Queue[P, V any] struct {
	q *monitor.Queue[common.Item[P, V]]
}

// New creates a heap-backed queue ordered by compare.
func New[P, V any](compare common.Comparer[P], opts ...common.Option) (*Queue[P, V], error) {
	cfg, err := common.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	h, err := heap.New[P, V](compare, cfg.InitialCapacity)
	if err != nil {
		return nil, err
	}
	return newQueue[P, V](&heapCollection[P, V]{h: h}, cfg)
}

// NewOrdered creates a heap-backed queue over naturally ordered priorities.
func NewOrdered[P cmp.Ordered, V any](opts ...common.Option) (*Queue[P, V], error) {
	return New[P, V](cmp.Compare[P], opts...)
}

// NewWithCollection creates a queue over any ordering collection,
// e.g. a bucket.Queue.
func NewWithCollection[P, V any](inner monitor.Collection[common.Item[P, V]], opts ...common.Option) (*Queue[P, V], error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: nil collection", common.ErrInvalidArgument)
	}
	cfg, err := common.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return newQueue(inner, cfg)
}

func newQueue[P, V any](inner monitor.Collection[common.Item[P, V]], cfg common.Config) (*Queue[P, V], error) {
	q, err := monitor.NewWithConfig(inner, cfg, "blocking")
	if err != nil {
		return nil, err
	}
	return &Queue[P, V]{q: q}, nil
}

// Name returns the queue name used in logs and metrics.
func (b *Queue[P, V]) Name() string { return b.q.Name() }

// Open marks the queue open again. Items already held are kept.
func (b *Queue[P, V]) Open() { b.q.Open() }

// Close stops the queue from accepting new items and wakes every waiter.
func (b *Queue[P, V]) Close() { b.q.Close() }

// Clear drops every held item without closing the queue.
func (b *Queue[P, V]) Clear() { b.q.Clear() }

// Count returns the number of items held.
func (b *Queue[P, V]) Count() int { return b.q.Count() }

// IsClosed reports whether the queue is closed.
func (b *Queue[P, V]) IsClosed() bool { return b.q.IsClosed() }

// MaxSize returns the size bound, or common.Unbounded.
func (b *Queue[P, V]) MaxSize() int { return b.q.MaxSize() }

// SetMaxSize changes the size bound.
func (b *Queue[P, V]) SetMaxSize(n int) error { return b.q.SetMaxSize(n) }

// Enqueue adds value under priority, waiting while a bounded queue is full.
func (b *Queue[P, V]) Enqueue(priority P, value V) error {
	return b.q.Enqueue(common.NewItem(priority, value))
}

// EnqueueForce adds value right away, ignoring the bound and the closed flag.
func (b *Queue[P, V]) EnqueueForce(priority P, value V) error {
	return b.q.EnqueueForce(common.NewItem(priority, value))
}

// Dequeue removes the lowest priority value, waiting while empty.
// It returns common.ErrQueueIsClosed once the queue is closed and empty.
func (b *Queue[P, V]) Dequeue() (V, error) {
	it, err := b.q.Dequeue()
	return it.Value, err
}

// DequeueContext is Dequeue that gives up when ctx is done.
func (b *Queue[P, V]) DequeueContext(ctx context.Context) (V, error) {
	it, err := b.q.DequeueContext(ctx)
	return it.Value, err
}

// TryDequeue removes the lowest priority value, waiting according to mode.
func (b *Queue[P, V]) TryDequeue(mode monitor.WaitMode) (V, bool) {
	it, ok := b.q.TryDequeue(mode)
	return it.Value, ok
}

// Peek returns the lowest priority value without removing it, waiting while empty.
func (b *Queue[P, V]) Peek() (V, error) {
	it, err := b.q.Peek()
	return it.Value, err
}

// TryPeek returns the lowest priority value without removing it,
// waiting according to mode.
func (b *Queue[P, V]) TryPeek(mode monitor.WaitMode) (V, bool) {
	it, ok := b.q.TryPeek(mode)
	return it.Value, ok
}

// WaitUntilEmpty blocks until every held item has been taken out.
func (b *Queue[P, V]) WaitUntilEmpty() { b.q.WaitUntilEmpty() }

// WaitUntilEmptyContext is WaitUntilEmpty that gives up when ctx is done.
func (b *Queue[P, V]) WaitUntilEmptyContext(ctx context.Context) error {
	return b.q.WaitUntilEmptyContext(ctx)
}

// heapCollection adapts heap.Heap to monitor.Collection.
type heapCollection[P, V any] struct {
	h *heap.Heap[P, V]
}

func (c *heapCollection[P, V]) Enqueue(item common.Item[P, V]) error {
	c.h.Enqueue(item.Priority, item.Value)
	return nil
}

func (c *heapCollection[P, V]) Dequeue() (common.Item[P, V], bool) {
	p, v, ok := c.h.TryDequeue()
	return common.Item[P, V]{Priority: p, Value: v}, ok
}

func (c *heapCollection[P, V]) Peek() (common.Item[P, V], bool) {
	p, v, ok := c.h.TryPeek()
	return common.Item[P, V]{Priority: p, Value: v}, ok
}

func (c *heapCollection[P, V]) Len() int { return c.h.Len() }

func (c *heapCollection[P, V]) Clear() { c.h.Clear() }
