// Package async provides an ordered queue for context-aware producers and
// consumers.
//
// Producers write into a FIFO hand-off buffer without touching the ordering
// heap. Before every dequeue decision the consumer drains that buffer into
// the heap, so the minimum is always chosen among every item that has been
// written so far.
package async

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aarondwi/ordq/buffer"
	"github.com/aarondwi/ordq/common"
	"github.com/aarondwi/ordq/heap"
	"github.com/aarondwi/ordq/metrics"
)

// Queue is an ordered async queue. The lowest priority under the comparer
// is dequeued first.
//
// Unlike blocking.Queue, reopening a closed Queue starts from a clean slate:
// whatever was left from the previous cycle is discarded.
type Queue[P, V any] struct {
	// mu guards heap, buf and closed. It is never held while waiting.
	mu     sync.Mutex
	heap   *heap.Heap[P, V]
	buf    *buffer.Buffer[common.Item[P, V]]
	closed bool

	maxSize int
	name    string
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New creates a queue ordered by compare.
func New[P, V any](compare common.Comparer[P], opts ...common.Option) (*Queue[P, V], error) {
	cfg, err := common.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	h, err := heap.New[P, V](compare, cfg.InitialCapacity)
	if err != nil {
		return nil, err
	}
	buf, err := buffer.New[common.Item[P, V]](cfg.MaxSize)
	if err != nil {
		return nil, err
	}

	q := &Queue[P, V]{
		heap:    h,
		buf:     buf,
		maxSize: cfg.MaxSize,
		name:    cfg.Name,
		logger:  cfg.Logger,
		metrics: metrics.New(cfg.Meter, "async", cfg.Name),
	}
	if cfg.StartClosed {
		q.closed = true
		buf.Complete()
	}
	return q, nil
}

// NewOrdered creates a queue over naturally ordered priorities.
func NewOrdered[P cmp.Ordered, V any](opts ...common.Option) (*Queue[P, V], error) {
	return New[P, V](cmp.Compare[P], opts...)
}

// Name returns the queue name used in logs and metrics.
func (q *Queue[P, V]) Name() string { return q.name }

// MaxSize returns the bound of the hand-off buffer, or common.Unbounded.
func (q *Queue[P, V]) MaxSize() int { return q.maxSize }

// IsClosed reports whether the queue is closed.
func (q *Queue[P, V]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Count returns the number of items held, ordered or still buffered.
func (q *Queue[P, V]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len() + q.buf.Len()
}

// Open starts a new cycle with a fresh buffer and an empty heap.
// Anything left from the previous cycle is discarded, and readers pinned
// to it are released.
func (q *Queue[P, V]) Open() {
	q.mu.Lock()
	old := q.buf
	// the old buffer was validated with the same size
	q.buf, _ = buffer.New[common.Item[P, V]](q.maxSize)
	old.Complete()
	discarded := q.heap.Len() + old.Discard()
	q.heap.Clear()
	q.closed = false
	q.mu.Unlock()

	q.metrics.Cleared(context.Background(), discarded)
	q.logger.Debug("queue opened",
		slog.String("queue", q.name),
		slog.Int("discarded", discarded),
	)
}

// Close stops the queue from accepting new items. Items already held are
// still served in order; after that readers get common.ErrNoMoreData.
// Calling Close twice is harmless.
func (q *Queue[P, V]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.buf.Complete()
	q.mu.Unlock()

	q.logger.Debug("queue closed", slog.String("queue", q.name))
}

// Clear empties the heap and discards whatever is buffered,
// without closing the queue.
func (q *Queue[P, V]) Clear() {
	q.mu.Lock()
	n := q.heap.Len() + q.buf.Discard()
	q.heap.Clear()
	q.mu.Unlock()

	q.metrics.Cleared(context.Background(), n)
	q.logger.Debug("queue cleared",
		slog.String("queue", q.name),
		slog.Int("discarded", n),
	)
}

// Enqueue writes value under priority, waiting while a bounded buffer is
// full. If the queue is, or becomes, closed the value is dropped and nil is
// returned. Only ctx.Err() is ever returned.
func (q *Queue[P, V]) Enqueue(ctx context.Context, priority P, value V) error {
	buf, ok := q.current()
	if !ok {
		q.dropped(ctx)
		return nil
	}

	err := buf.Write(ctx, common.NewItem(priority, value))
	switch {
	case err == nil:
		q.metrics.Enqueued(ctx, 1)
		return nil
	case errors.Is(err, common.ErrQueueIsClosed):
		q.dropped(ctx)
		return nil
	default:
		return err
	}
}

// TryEnqueue writes value if there is room right now. It reports false
// when the buffer is full or the queue is closed.
func (q *Queue[P, V]) TryEnqueue(priority P, value V) bool {
	buf, ok := q.current()
	if !ok {
		q.dropped(context.Background())
		return false
	}
	if !buf.TryWrite(common.NewItem(priority, value)) {
		return false
	}
	q.metrics.Enqueued(context.Background(), 1)
	return true
}

// Dequeue removes the lowest priority value, waiting while the queue is
// empty. It returns common.ErrNoMoreData once the queue is closed and
// drained, or ctx.Err() if ctx is done first; nothing is removed then.
func (q *Queue[P, V]) Dequeue(ctx context.Context) (V, error) {
	return q.next(ctx, nil, true)
}

// Peek returns the lowest priority value without removing it, waiting
// while the queue is empty. It fails the same way Dequeue does.
func (q *Queue[P, V]) Peek(ctx context.Context) (V, error) {
	return q.next(ctx, nil, false)
}

// TryPeek returns the lowest priority value among everything written so
// far, without removing it and without waiting.
func (q *Queue[P, V]) TryPeek() (V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainLocked(q.buf)
	_, v, ok := q.heap.TryPeek()
	return v, ok
}

// ReadAll returns a sequence of values in priority order. The sequence is
// bound to the open/close cycle current when ranging starts: it ends when
// that cycle is closed and drained, or when the queue is reopened.
// If ctx is done the pair (zero, ctx.Err()) is yielded once and the
// sequence ends.
//
// The sequence can be ranged only once; later ranges yield nothing.
func (q *Queue[P, V]) ReadAll(ctx context.Context) iter.Seq2[V, error] {
	var used atomic.Bool
	return func(yield func(V, error) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		pinned, _ := q.current()

		for {
			v, err := q.next(ctx, pinned, true)
			if errors.Is(err, common.ErrNoMoreData) {
				return
			}
			if err != nil {
				var zero V
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// current returns the buffer of this cycle and whether the queue is open.
func (q *Queue[P, V]) current() (*buffer.Buffer[common.Item[P, V]], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf, !q.closed
}

// next runs the drain-before-decide loop, taking the value out when remove
// is set. With pinned set, it stops as soon as the queue moved on to
// another buffer.
func (q *Queue[P, V]) next(ctx context.Context, pinned *buffer.Buffer[common.Item[P, V]], remove bool) (V, error) {
	var zero V
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		q.mu.Lock()
		buf := q.buf
		if pinned != nil && buf != pinned {
			q.mu.Unlock()
			return zero, common.ErrNoMoreData
		}

		q.drainLocked(buf)
		if !remove {
			if _, v, ok := q.heap.TryPeek(); ok {
				q.mu.Unlock()
				return v, nil
			}
		} else if _, v, ok := q.heap.TryDequeue(); ok {
			q.mu.Unlock()
			q.metrics.Dequeued(ctx, 1)
			return v, nil
		}
		if buf.Completed() {
			q.mu.Unlock()
			return zero, common.ErrNoMoreData
		}
		// taken under q.mu, so any write after the drain above closes it,
		// even when another consumer drains that write first
		ready := buf.Ready()
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// drainLocked moves every buffered item into the heap.
// Must be called with q.mu held.
func (q *Queue[P, V]) drainLocked(buf *buffer.Buffer[common.Item[P, V]]) {
	for {
		it, ok := buf.TryRead()
		if !ok {
			return
		}
		q.heap.Enqueue(it.Priority, it.Value)
	}
}

func (q *Queue[P, V]) dropped(ctx context.Context) {
	q.metrics.DroppedClosed(ctx, 1)
	q.logger.Debug("enqueue on closed queue dropped", slog.String("queue", q.name))
}
